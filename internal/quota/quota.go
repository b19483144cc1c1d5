// Package quota enforces plan ceilings on document creation and on the number
// of live contacts and projects. Monthly counters live on the organization row
// and are reset lazily the first time a new calendar month is observed.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Resource string

const (
	ResourceInvoices Resource = "invoices"
	ResourceQuotes   Resource = "quotes"
	ResourceContacts Resource = "contacts"
	ResourceProjects Resource = "projects"
)

var ErrUnknownResource = errors.New("unknown_quota_resource")

func (r Resource) monthly() bool {
	return r == ResourceInvoices || r == ResourceQuotes
}

func (r Resource) counterColumn() string {
	switch r {
	case ResourceInvoices:
		return "invoices_month_count"
	case ResourceQuotes:
		return "quotes_month_count"
	default:
		return ""
	}
}

func (r Resource) table() string {
	switch r {
	case ResourceContacts:
		return "contacts"
	case ResourceProjects:
		return "projects"
	default:
		return ""
	}
}

func (r Resource) limit(limits config.PlanLimits) (int64, error) {
	switch r {
	case ResourceInvoices:
		return limits.MaxInvoicesPerMonth, nil
	case ResourceQuotes:
		return limits.MaxQuotesPerMonth, nil
	case ResourceContacts:
		return limits.MaxContacts, nil
	case ResourceProjects:
		return limits.MaxProjects, nil
	default:
		return 0, ErrUnknownResource
	}
}

// ExceededError is returned when a plan ceiling blocks an operation.
type ExceededError struct {
	Resource Resource
	Plan     string
	Limit    int64
	Used     int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota_exceeded: %s %d/%d on plan %s", e.Resource, e.Used, e.Limit, e.Plan)
}

// UpgradeRequired is always true; a denial can only be lifted by a plan change.
func (e *ExceededError) UpgradeRequired() bool { return true }

type ResourceUsage struct {
	Resource Resource `json:"resource"`
	Used     int64    `json:"used"`
	Limit    int64    `json:"limit"`
}

type Usage struct {
	Plan      string          `json:"plan"`
	Period    string          `json:"period"`
	Resources []ResourceUsage `json:"resources"`
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Plans   *config.PlanLimitsHolder
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
}

type Service struct {
	db      *gorm.DB
	plans   *config.PlanLimitsHolder
	clock   clock.Clock
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		plans:   p.Plans,
		clock:   p.Clock,
		metrics: p.Metrics,
		log:     p.Log.Named("quota.service"),
	}
}

var Module = fx.Module("quota.service",
	fx.Provide(NewService),
)

type counters struct {
	Plan               string
	InvoicesMonthCount int64
	QuotesMonthCount   int64
	CountersPeriod     string
}

func (c counters) used(resource Resource) int64 {
	if resource == ResourceInvoices {
		return c.InvoicesMonthCount
	}
	return c.QuotesMonthCount
}

// CheckAndReserve admits one more unit of resource for the organization. For
// monthly resources the counter is incremented on tx, so a rollback of the
// caller's transaction releases the reservation.
func (s *Service) CheckAndReserve(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, resource Resource) error {
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ctx)

	if err := s.resetPeriod(tx, orgID); err != nil {
		return err
	}
	c, err := loadCounters(tx, orgID)
	if err != nil {
		return err
	}
	limits := s.plans.Limits(c.Plan)
	limit, err := resource.limit(limits)
	if err != nil {
		return err
	}

	if !resource.monthly() {
		return s.checkAbsolute(ctx, tx, orgID, resource, c.Plan, limit)
	}

	column := resource.counterColumn()
	if limit == config.Unlimited {
		return tx.Exec(
			`UPDATE organizations SET `+column+` = `+column+` + 1 WHERE id = ?`,
			orgID,
		).Error
	}

	result := tx.Exec(
		`UPDATE organizations SET `+column+` = `+column+` + 1 WHERE id = ? AND `+column+` < ?`,
		orgID, limit,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		current, err := loadCounters(tx, orgID)
		if err != nil {
			return err
		}
		return s.deny(ctx, resource, current.Plan, limit, current.used(resource))
	}
	return nil
}

func (s *Service) checkAbsolute(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, resource Resource, plan string, limit int64) error {
	if limit == config.Unlimited {
		return nil
	}
	used, err := countLive(tx, orgID, resource)
	if err != nil {
		return err
	}
	if used >= limit {
		return s.deny(ctx, resource, plan, limit, used)
	}
	return nil
}

func (s *Service) deny(ctx context.Context, resource Resource, plan string, limit, used int64) error {
	s.metrics.RecordQuotaDenied(ctx, string(resource), plan)
	s.log.Info("quota denied",
		zap.String("resource", string(resource)),
		zap.String("plan", plan),
		zap.Int64("limit", limit),
		zap.Int64("used", used),
	)
	return &ExceededError{Resource: resource, Plan: plan, Limit: limit, Used: used}
}

// Usage reports the organization's consumption against its plan.
func (s *Service) Usage(ctx context.Context, orgID snowflake.ID) (*Usage, error) {
	tx := s.db.WithContext(ctx)
	if err := s.resetPeriod(tx, orgID); err != nil {
		return nil, err
	}
	c, err := loadCounters(tx, orgID)
	if err != nil {
		return nil, err
	}
	limits := s.plans.Limits(c.Plan)

	usage := &Usage{Plan: c.Plan, Period: c.CountersPeriod}
	for _, resource := range []Resource{ResourceInvoices, ResourceQuotes, ResourceContacts, ResourceProjects} {
		limit, _ := resource.limit(limits)
		used := int64(0)
		if resource.monthly() {
			used = c.used(resource)
		} else if used, err = countLive(tx, orgID, resource); err != nil {
			return nil, err
		}
		usage.Resources = append(usage.Resources, ResourceUsage{Resource: resource, Used: used, Limit: limit})
	}
	return usage, nil
}

func (s *Service) resetPeriod(tx *gorm.DB, orgID snowflake.ID) error {
	now := s.clock.Now()
	period := now.Format("2006-01")
	result := tx.Exec(
		`UPDATE organizations
		 SET invoices_month_count = 0, quotes_month_count = 0, counters_period = ?, counters_reset_at = ?
		 WHERE id = ? AND counters_period <> ?`,
		period, now, orgID, period,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Debug("monthly counters reset", zap.String("org_id", orgID.String()), zap.String("period", period))
	}
	return nil
}

func loadCounters(tx *gorm.DB, orgID snowflake.ID) (counters, error) {
	var rows []counters
	err := tx.Raw(
		`SELECT plan, invoices_month_count, quotes_month_count, counters_period FROM organizations WHERE id = ?`,
		orgID,
	).Scan(&rows).Error
	if err != nil {
		return counters{}, err
	}
	if len(rows) == 0 {
		return counters{}, orgdomain.ErrNotFound
	}
	return rows[0], nil
}

func countLive(tx *gorm.DB, orgID snowflake.ID, resource Resource) (int64, error) {
	var count int64
	err := tx.Raw(
		`SELECT COUNT(*) FROM `+resource.table()+` WHERE org_id = ? AND `+db.ActiveClause,
		orgID,
	).Scan(&count).Error
	return count, err
}
