package secret

import (
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("secret",
	fx.Provide(Provide),
)

// Provide builds the cipher from configuration. Without key material the
// process refuses to start in production; elsewhere the cipher is nil and
// storing or using an organization's own Stripe key fails with a
// configuration error.
func Provide(cfg config.Config, log *zap.Logger) (*Cipher, error) {
	c, err := NewCipher(cfg)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, ErrMissingKey) && !cfg.IsProduction() {
		log.Warn("PAYMENT_PROVIDER_CONFIG_SECRET is not set; organization Stripe keys are disabled")
		return nil, nil
	}
	return nil, errors.Wrap(err, "init secret cipher")
}
