package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigStore persists the applied tenant payload on local disk,
// sealed with the same codec used for QR transport so credentials are
// never written in the clear.
type ConfigStore struct {
	Path  string
	Codec *Codec
}

// Load returns the stored payload, or (nil, nil) when no tenant has
// been applied yet.
func (s *ConfigStore) Load() (*BootstrapPayload, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tenant config: %w", err)
	}

	plaintext, err := s.Codec.open(raw)
	if err != nil {
		return nil, fmt.Errorf("open tenant config: %w", err)
	}
	var payload BootstrapPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("decode tenant config: %w", err)
	}
	return &payload, nil
}

// Save seals and writes the payload atomically.
func (s *ConfigStore) Save(payload *BootstrapPayload) error {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode tenant config: %w", err)
	}
	sealed, err := s.Codec.seal(plaintext)
	if err != nil {
		return fmt.Errorf("seal tenant config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create tenant config dir: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("write tenant config: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("write tenant config: %w", err)
	}
	return nil
}
