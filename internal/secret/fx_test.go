package secret_test

import (
	"testing"

	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/secret"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProvideWithoutKeyOutsideProduction(t *testing.T) {
	c, err := secret.Provide(config.Config{Environment: "development"}, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestProvideWithoutKeyInProduction(t *testing.T) {
	_, err := secret.Provide(config.Config{Environment: "production"}, zap.NewNop())
	require.ErrorIs(t, err, secret.ErrMissingKey)
}

func TestProvideWithKey(t *testing.T) {
	c, err := secret.Provide(config.Config{Environment: "production", PaymentProviderConfigSecret: "k"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, c)
}
