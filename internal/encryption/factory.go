package encryption

import (
	"ev-go/internal/config"
	"ev-go/internal/ev"
	"ev-go/internal/vaulterr"
)

// NewSealerFromConfig creates a Sealer based on the configuration type.
func NewSealerFromConfig(cfg config.SealConfig) (ev.Sealer, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeSealer(cfg), nil
	case "test":
		return NewTestSealer(), nil
	default:
		return nil, vaulterr.New(vaulterr.Validation, "unknown seal type: %q", cfg.Type)
	}
}
