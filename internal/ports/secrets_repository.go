package ports

import (
	"context"

	"github.com/hashicorp/vault/api"
)

// SecretsRepository reads the tracker's credentials (Postgres, KeyDB, NATS
// and MQTT passwords) from Vault.
type SecretsRepository interface {
	SetToken(v string)
	GetSecrets(ctx context.Context, path string) (*api.Secret, error)
	// WriteWithContext is only used for the AppRole login.
	WriteWithContext(ctx context.Context, path string, data map[string]any) (*api.Secret, error)
}
