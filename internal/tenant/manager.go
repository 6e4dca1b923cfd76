package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Rebinder is the collaborator that points the document-store client
// at a different tenant project. The firestore store satisfies it.
type Rebinder interface {
	Rebind(ctx context.Context, projectID string) error
}

// Manager applies decoded bootstrap payloads: persist to the local
// encrypted config store, then rebind the backend client. Applying a
// payload identical to the stored one is a no-op, so a re-scanned QR
// never causes churn.
type Manager struct {
	Codec    *Codec
	Store    *ConfigStore
	Rebinder Rebinder
	Logger   *slog.Logger

	mu sync.Mutex
}

// Apply decodes the opaque scanned string and binds the session to
// the tenant it describes. Returns the payload and whether anything
// changed.
func (m *Manager) Apply(ctx context.Context, opaque string) (*BootstrapPayload, bool, error) {
	payload, err := m.Codec.Decode(opaque)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.Store.Load()
	if err != nil {
		return nil, false, err
	}
	if current != nil &&
		current.BackendConfigJSON == payload.BackendConfigJSON &&
		current.TenantProjectID == payload.TenantProjectID &&
		current.CompanyName == payload.CompanyName {
		m.Logger.Info("tenant config unchanged", "company", payload.CompanyName, "projectId", payload.TenantProjectID)
		return payload, false, nil
	}

	// Persist before rebinding so a restart comes back up bound to
	// the new tenant even if the rebind below fails transiently.
	if err := m.Store.Save(payload); err != nil {
		return nil, false, err
	}
	if m.Rebinder != nil {
		if err := m.Rebinder.Rebind(ctx, payload.TenantProjectID); err != nil {
			return nil, false, fmt.Errorf("rebind backend client: %w", err)
		}
	}

	m.Logger.Info("tenant applied", "company", payload.CompanyName, "projectId", payload.TenantProjectID)
	return payload, true, nil
}
