package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Unlimited as a ceiling disables the check for that resource.
const Unlimited int64 = -1

const (
	PlanFree    = "free"
	PlanStarter = "starter"
	PlanPro     = "pro"
)

const FeatureFECExport = "fec_export"

// PlanLimits are the ceilings attached to a subscription plan.
type PlanLimits struct {
	MaxInvoicesPerMonth int64    `mapstructure:"max_invoices_per_month"`
	MaxQuotesPerMonth   int64    `mapstructure:"max_quotes_per_month"`
	MaxContacts         int64    `mapstructure:"max_contacts"`
	MaxProjects         int64    `mapstructure:"max_projects"`
	Features            []string `mapstructure:"features"`
}

func (p PlanLimits) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if strings.EqualFold(strings.TrimSpace(f), feature) {
			return true
		}
	}
	return false
}

type PlansConfig struct {
	Plans map[string]PlanLimits `mapstructure:"plans"`
}

func DefaultPlansConfig() PlansConfig {
	return PlansConfig{
		Plans: map[string]PlanLimits{
			PlanFree: {
				MaxInvoicesPerMonth: 5,
				MaxQuotesPerMonth:   5,
				MaxContacts:         20,
				MaxProjects:         3,
			},
			PlanStarter: {
				MaxInvoicesPerMonth: 50,
				MaxQuotesPerMonth:   50,
				MaxContacts:         200,
				MaxProjects:         20,
				Features:            []string{FeatureFECExport},
			},
			PlanPro: {
				MaxInvoicesPerMonth: Unlimited,
				MaxQuotesPerMonth:   Unlimited,
				MaxContacts:         Unlimited,
				MaxProjects:         Unlimited,
				Features:            []string{FeatureFECExport},
			},
		},
	}
}

type PlanLimitsHolder struct {
	current atomic.Value // holds PlansConfig
}

// NewStaticPlanLimits returns a holder that never reloads.
func NewStaticPlanLimits(cfg PlansConfig) *PlanLimitsHolder {
	holder := &PlanLimitsHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewPlanLimitsHolder reads plans.yml and watches it for changes. A missing
// file falls back to the built-in plans.
func NewPlanLimitsHolder(cfg Config, log *zap.Logger) (*PlanLimitsHolder, error) {
	log = log.Named("config.plans")
	v := viper.New()

	if cfg.PlansConfigPath != "" {
		v.SetConfigFile(cfg.PlansConfigPath)
	} else {
		v.SetConfigName("plans")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/atelier")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Info("plans config not found, using defaults")
		return NewStaticPlanLimits(DefaultPlansConfig()), nil
	}

	loaded, err := decodePlans(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPlanLimits(loaded)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePlans(v)
		if err != nil {
			log.Warn("plans reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("plans reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PlanLimitsHolder) Get() PlansConfig {
	return h.current.Load().(PlansConfig)
}

// Limits resolves a plan's ceilings. Unknown plans get the free tier.
func (h *PlanLimitsHolder) Limits(plan string) PlanLimits {
	plans := h.Get().Plans
	if limits, ok := plans[strings.ToLower(strings.TrimSpace(plan))]; ok {
		return limits
	}
	return plans[PlanFree]
}

func decodePlans(v *viper.Viper) (PlansConfig, error) {
	var cfg PlansConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return PlansConfig{}, err
	}
	if err := validatePlans(cfg); err != nil {
		return PlansConfig{}, err
	}
	return cfg, nil
}

func validatePlans(cfg PlansConfig) error {
	if _, ok := cfg.Plans[PlanFree]; !ok {
		return errors.New("plans.free is required")
	}
	for name, limits := range cfg.Plans {
		for field, value := range map[string]int64{
			"max_invoices_per_month": limits.MaxInvoicesPerMonth,
			"max_quotes_per_month":   limits.MaxQuotesPerMonth,
			"max_contacts":           limits.MaxContacts,
			"max_projects":           limits.MaxProjects,
		} {
			if value < Unlimited {
				return fmt.Errorf("plans.%s.%s must be -1 or a non-negative ceiling", name, field)
			}
		}
	}
	return nil
}
