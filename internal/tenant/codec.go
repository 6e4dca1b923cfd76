// Package tenant implements the multi-tenant bootstrap: company
// backend configuration is wrapped, encrypted and rendered as a QR
// code on the admin side, then decoded, persisted and applied on the
// employee side.
package tenant

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"inout-backend/internal/domain"
)

// payloadVersion is prepended to every sealed payload and included as
// AAD, so tampering with it fails authentication.
const payloadVersion byte = 0x01

// hkdfInfo domain-separates the QR sealing key from any other key
// derived from the same shared secret.
var hkdfInfo = []byte("inout.tenant.qr.v1")

// BootstrapPayload is the wrapper carried inside the QR code. It is
// ephemeral: it exists in transit between the admin and employee
// devices and in the local encrypted config store once applied.
type BootstrapPayload struct {
	BackendConfigJSON string `json:"firebaseConfig"`
	CompanyName       string `json:"companyName"`
	TenantProjectID   string `json:"projectId"`
	Timestamp         int64  `json:"timestamp"`
}

// BackendConfig is the minimum set of fields a backend client needs
// to bootstrap, extracted from the tenant's config JSON.
type BackendConfig struct {
	ApplicationID string
	APIKey        string
	ProjectID     string
	StorageBucket string
}

// ParseBackendConfig validates and extracts the bootstrap fields from
// a google-services style config document: project id and storage
// bucket under project_info, the application id and API key under the
// first client entry.
func ParseBackendConfig(configJSON string) (*BackendConfig, error) {
	var root struct {
		ProjectInfo struct {
			ProjectID     string `json:"project_id"`
			StorageBucket string `json:"storage_bucket"`
		} `json:"project_info"`
		Client []struct {
			ClientInfo struct {
				MobileSDKAppID string `json:"mobilesdk_app_id"`
			} `json:"client_info"`
			APIKey []struct {
				CurrentKey string `json:"current_key"`
			} `json:"api_key"`
		} `json:"client"`
	}
	if err := json.Unmarshal([]byte(configJSON), &root); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidBackendConfig, err)
	}

	cfg := &BackendConfig{
		ProjectID:     root.ProjectInfo.ProjectID,
		StorageBucket: root.ProjectInfo.StorageBucket,
	}
	if len(root.Client) > 0 {
		cfg.ApplicationID = root.Client[0].ClientInfo.MobileSDKAppID
		if len(root.Client[0].APIKey) > 0 {
			cfg.APIKey = root.Client[0].APIKey[0].CurrentKey
		}
	}
	if cfg.ProjectID == "" || cfg.StorageBucket == "" || cfg.ApplicationID == "" || cfg.APIKey == "" {
		return nil, domain.ErrInvalidBackendConfig
	}
	return cfg, nil
}

// Codec seals and opens bootstrap payloads with a key derived from a
// locally-held shared secret. Encryption keeps backend credentials
// unreadable to anyone who merely photographs the QR; it is not
// access control.
type Codec struct {
	key []byte
}

// NewCodec derives the 32-byte sealing key from the shared secret via
// HKDF-SHA256.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("tenant codec secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	return &Codec{key: key}, nil
}

// Encode validates the backend config, wraps it with the company
// identity and a timestamp, and seals the result into a single opaque
// base64url string fit for a QR symbol.
func (c *Codec) Encode(backendConfigJSON, companyName, tenantProjectID string) (string, error) {
	if _, err := ParseBackendConfig(backendConfigJSON); err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(BootstrapPayload{
		BackendConfigJSON: backendConfigJSON,
		CompanyName:       companyName,
		TenantProjectID:   tenantProjectID,
		Timestamp:         time.Now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	sealed, err := c.seal(plaintext)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens an opaque payload string. Corrupt or foreign input is
// ErrDecryptionFailed, a decrypted but incomplete wrapper is
// ErrMalformedPayload, and a wrapper whose inner config cannot
// bootstrap a client is ErrInvalidBackendConfig.
func (c *Codec) Decode(opaque string) (*BootstrapPayload, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(opaque)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64url", domain.ErrDecryptionFailed)
	}

	plaintext, err := c.open(sealed)
	if err != nil {
		return nil, err
	}

	var payload BootstrapPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedPayload, err)
	}
	if payload.BackendConfigJSON == "" || payload.CompanyName == "" || payload.TenantProjectID == "" {
		return nil, domain.ErrMalformedPayload
	}
	if _, err := ParseBackendConfig(payload.BackendConfigJSON); err != nil {
		return nil, err
	}
	return &payload, nil
}

// seal produces [version | 24-byte nonce | ciphertext+tag] with the
// version byte as AAD.
func (c *Codec) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	out[0] = payloadVersion
	copy(out[1:], nonce[:])
	return aead.Seal(out, nonce[:], plaintext, []byte{payloadVersion}), nil
}

func (c *Codec) open(sealed []byte) ([]byte, error) {
	minLen := 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(sealed) < minLen {
		return nil, fmt.Errorf("%w: %d bytes, minimum %d", domain.ErrDecryptionFailed, len(sealed), minLen)
	}
	version := sealed[0]
	if version != payloadVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrDecryptionFailed, version)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[1+chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte{version})
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrDecryptionFailed)
	}
	return plaintext, nil
}
