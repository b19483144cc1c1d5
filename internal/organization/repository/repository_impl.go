package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/atelier/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, plan, counters_period, commission_rate, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.Plan,
		org.CountersPeriod,
		org.CommissionRate,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
}

func (r *repository) AddMember(ctx context.Context, member domain.Member) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_members (org_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (org_id, user_id) DO NOTHING`,
		member.OrgID,
		member.UserID,
		member.Role,
		member.CreatedAt,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organizations WHERE id = ?`,
		id,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repository) FindByStripeAccountID(ctx context.Context, accountID string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM organizations WHERE stripe_account_id = ?`,
		accountID,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repository) ListMemberIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT user_id FROM organization_members WHERE org_id = ? ORDER BY created_at ASC, user_id ASC`,
		orgID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(ids, func(id int64, _ int) snowflake.ID { return snowflake.ID(id) }), nil
}

func (r *repository) UpdateStripeCredentials(ctx context.Context, orgID snowflake.ID, secretKeyEnc, publishableKey string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET stripe_secret_key_enc = ?, stripe_publishable_key = ?, updated_at = ? WHERE id = ?`,
		secretKeyEnc, publishableKey, now, orgID,
	)
	return result.RowsAffected > 0, result.Error
}

func (r *repository) UpdateConnectAccount(ctx context.Context, orgID snowflake.ID, accountID string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET stripe_account_id = ?, updated_at = ? WHERE id = ?`,
		accountID, now, orgID,
	)
	return result.RowsAffected > 0, result.Error
}

func (r *repository) UpdateChargesEnabled(ctx context.Context, orgID snowflake.ID, enabled bool, now time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET stripe_charges_enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, now, orgID,
	).Error
}

func (r *repository) UpdatePlan(ctx context.Context, orgID snowflake.ID, plan string, commissionRate decimal.Decimal, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET plan = ?, commission_rate = ?, updated_at = ? WHERE id = ?`,
		plan, commissionRate, now, orgID,
	)
	return result.RowsAffected > 0, result.Error
}
