package tenant

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"inout-backend/internal/domain"
)

const validBackendConfig = `{
  "project_info": {
    "project_id": "acme-inout",
    "storage_bucket": "acme-inout.appspot.com"
  },
  "client": [
    {
      "client_info": {"mobilesdk_app_id": "1:1234567890:android:abc123"},
      "api_key": [{"current_key": "AIzaSyTestKey000000000000000000000000000"}]
    }
  ]
}`

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec("unit-test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestParseBackendConfig(t *testing.T) {
	cfg, err := ParseBackendConfig(validBackendConfig)
	if err != nil {
		t.Fatalf("ParseBackendConfig: %v", err)
	}
	if cfg.ProjectID != "acme-inout" {
		t.Errorf("ProjectID = %q, want %q", cfg.ProjectID, "acme-inout")
	}
	if cfg.StorageBucket != "acme-inout.appspot.com" {
		t.Errorf("StorageBucket = %q", cfg.StorageBucket)
	}
	if cfg.ApplicationID != "1:1234567890:android:abc123" {
		t.Errorf("ApplicationID = %q", cfg.ApplicationID)
	}
	if cfg.APIKey == "" {
		t.Error("APIKey is empty")
	}
}

func TestParseBackendConfigRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", "not json at all"},
		{"empty object", "{}"},
		{"missing clients", `{"project_info": {"project_id": "p", "storage_bucket": "b"}}`},
		{"missing api key", `{"project_info": {"project_id": "p", "storage_bucket": "b"}, "client": [{"client_info": {"mobilesdk_app_id": "app"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBackendConfig(tt.in); !errors.Is(err, domain.ErrInvalidBackendConfig) {
				t.Errorf("err = %v, want ErrInvalidBackendConfig", err)
			}
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	opaque, err := codec.Encode(validBackendConfig, "Acme", "acme-inout")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	payload, err := codec.Decode(opaque)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.CompanyName != "Acme" {
		t.Errorf("CompanyName = %q, want %q", payload.CompanyName, "Acme")
	}
	if payload.TenantProjectID != "acme-inout" {
		t.Errorf("TenantProjectID = %q, want %q", payload.TenantProjectID, "acme-inout")
	}
	if payload.BackendConfigJSON != validBackendConfig {
		t.Error("BackendConfigJSON not preserved byte for byte")
	}
	if payload.Timestamp == 0 {
		t.Error("Timestamp not set")
	}
}

func TestCodecNondeterministicCiphertext(t *testing.T) {
	codec := newTestCodec(t)
	a, err := codec.Encode(validBackendConfig, "Acme", "acme-inout")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := codec.Encode(validBackendConfig, "Acme", "acme-inout")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if a == b {
		t.Error("two encodings of the same payload are identical; nonce not randomized")
	}
}

func TestDecodeRejectsTampering(t *testing.T) {
	codec := newTestCodec(t)
	opaque, err := codec.Encode(validBackendConfig, "Acme", "acme-inout")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	t.Run("garbage input", func(t *testing.T) {
		if _, err := codec.Decode("definitely not a payload!!!"); !errors.Is(err, domain.ErrDecryptionFailed) {
			t.Errorf("err = %v, want ErrDecryptionFailed", err)
		}
	})

	t.Run("flipped ciphertext byte", func(t *testing.T) {
		raw, _ := base64.RawURLEncoding.DecodeString(opaque)
		raw[len(raw)-1] ^= 0x01
		if _, err := codec.Decode(base64.RawURLEncoding.EncodeToString(raw)); !errors.Is(err, domain.ErrDecryptionFailed) {
			t.Errorf("err = %v, want ErrDecryptionFailed", err)
		}
	})

	t.Run("wrong version byte", func(t *testing.T) {
		raw, _ := base64.RawURLEncoding.DecodeString(opaque)
		raw[0] = 0x7f
		if _, err := codec.Decode(base64.RawURLEncoding.EncodeToString(raw)); !errors.Is(err, domain.ErrDecryptionFailed) {
			t.Errorf("err = %v, want ErrDecryptionFailed", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewCodec("a different secret")
		if err != nil {
			t.Fatalf("NewCodec: %v", err)
		}
		if _, err := other.Decode(opaque); !errors.Is(err, domain.ErrDecryptionFailed) {
			t.Errorf("err = %v, want ErrDecryptionFailed", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		if _, err := codec.Decode(opaque[:8]); !errors.Is(err, domain.ErrDecryptionFailed) {
			t.Errorf("err = %v, want ErrDecryptionFailed", err)
		}
	})
}

func TestDecodeRejectsMalformedWrapper(t *testing.T) {
	codec := newTestCodec(t)

	// A sealed blob that decrypts fine but does not carry a complete
	// wrapper.
	sealed, err := codec.seal([]byte(`{"companyName": "Acme"}`))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	opaque := base64.RawURLEncoding.EncodeToString(sealed)
	if _, err := codec.Decode(opaque); !errors.Is(err, domain.ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestConfigStoreRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	cs := &ConfigStore{Path: filepath.Join(t.TempDir(), "nested", "tenant.conf"), Codec: codec}

	if payload, err := cs.Load(); err != nil || payload != nil {
		t.Fatalf("Load before save = (%v, %v), want (nil, nil)", payload, err)
	}

	want := &BootstrapPayload{
		BackendConfigJSON: validBackendConfig,
		CompanyName:       "Acme",
		TenantProjectID:   "acme-inout",
		Timestamp:         1789000000000,
	}
	if err := cs.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := cs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

type fakeRebinder struct {
	calls []string
	err   error
}

func (f *fakeRebinder) Rebind(ctx context.Context, projectID string) error {
	f.calls = append(f.calls, projectID)
	return f.err
}

func TestManagerApplyIdempotent(t *testing.T) {
	codec := newTestCodec(t)
	cs := &ConfigStore{Path: filepath.Join(t.TempDir(), "tenant.conf"), Codec: codec}
	rebinder := &fakeRebinder{}
	mgr := &Manager{
		Codec:    codec,
		Store:    cs,
		Rebinder: rebinder,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	opaque, err := codec.Encode(validBackendConfig, "Acme", "acme-inout")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	payload, changed, err := mgr.Apply(context.Background(), opaque)
	if err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if !changed {
		t.Error("first Apply reported no change")
	}
	if payload.CompanyName != "Acme" {
		t.Errorf("CompanyName = %q", payload.CompanyName)
	}
	if len(rebinder.calls) != 1 || rebinder.calls[0] != "acme-inout" {
		t.Fatalf("rebind calls = %v, want one for acme-inout", rebinder.calls)
	}

	// Re-scanning the same QR is a no-op.
	_, changed, err = mgr.Apply(context.Background(), opaque)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if changed {
		t.Error("second Apply of the same payload reported a change")
	}
	if len(rebinder.calls) != 1 {
		t.Errorf("rebind calls after re-apply = %v, want still one", rebinder.calls)
	}
}

func TestManagerApplyRejectsBadPayload(t *testing.T) {
	codec := newTestCodec(t)
	mgr := &Manager{
		Codec:  codec,
		Store:  &ConfigStore{Path: filepath.Join(t.TempDir(), "tenant.conf"), Codec: codec},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if _, _, err := mgr.Apply(context.Background(), "garbage"); !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("err = %v, want ErrDecryptionFailed", err)
	}

	if _, err := mgr.Store.Load(); err != nil {
		t.Errorf("store should stay empty and readable after a rejected payload: %v", err)
	}
}

func TestRenderQR(t *testing.T) {
	codec := newTestCodec(t)
	opaque, err := codec.Encode(validBackendConfig, "Acme", "acme-inout")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	png, err := RenderQR(opaque)
	if err != nil {
		t.Fatalf("RenderQR: %v", err)
	}
	// PNG signature
	if len(png) < 8 || png[0] != 0x89 || string(png[1:4]) != "PNG" {
		t.Error("RenderQR output is not a PNG")
	}
}
