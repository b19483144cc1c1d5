package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smallbiznis/atelier/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLimitsFallsBackToFree(t *testing.T) {
	holder := config.NewStaticPlanLimits(config.DefaultPlansConfig())

	require.Equal(t, int64(5), holder.Limits("unknown").MaxInvoicesPerMonth)
	require.Equal(t, config.Unlimited, holder.Limits("PRO").MaxInvoicesPerMonth)
	require.True(t, holder.Limits(config.PlanStarter).HasFeature(config.FeatureFECExport))
	require.False(t, holder.Limits(config.PlanFree).HasFeature(config.FeatureFECExport))
}

func TestNewPlanLimitsHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yml")
	content := []byte(`plans:
  free:
    max_invoices_per_month: 2
    max_quotes_per_month: 3
    max_contacts: 10
    max_projects: 1
  pro:
    max_invoices_per_month: -1
    max_quotes_per_month: -1
    max_contacts: -1
    max_projects: -1
    features: [fec_export]
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := config.NewPlanLimitsHolder(config.Config{PlansConfigPath: path}, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, int64(2), holder.Limits(config.PlanFree).MaxInvoicesPerMonth)
	require.Equal(t, int64(3), holder.Limits(config.PlanFree).MaxQuotesPerMonth)
	require.True(t, holder.Limits(config.PlanPro).HasFeature(config.FeatureFECExport))
}

func TestNewPlanLimitsHolderRejectsInvalidCeiling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yml")
	require.NoError(t, os.WriteFile(path, []byte("plans:\n  free:\n    max_invoices_per_month: -5\n"), 0o600))

	_, err := config.NewPlanLimitsHolder(config.Config{PlansConfigPath: path}, zap.NewNop())
	require.Error(t, err)
}
