// Package appid resolves the application identity, falling back to the
// embedded app.yaml when no .fulmen/app.yaml is found.
package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/hunterino/MiniKeybaord/internal/assets/appidentity"
)

// DefaultEnvPrefix is used when the identity cannot be loaded.
const DefaultEnvPrefix = "MINIKEYBOARD_"

func init() {
	// Explicit overrides (FULMEN_APP_IDENTITY_PATH) still win over the
	// embedded copy.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get returns the process-wide identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity's environment prefix, or
// DefaultEnvPrefix.
func EnvPrefix(ctx context.Context) string {
	identity, err := Get(ctx)
	if err != nil || identity == nil || identity.EnvPrefix == "" {
		return DefaultEnvPrefix
	}
	return identity.EnvPrefix
}
