// Package domain contains persistence models for organizations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/atelier/internal/config"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Organization represents a tenant. StripeSecretKeyEnc holds the sealed
// envelope produced by secret.Cipher and is never serialized.
type Organization struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name                 string          `gorm:"type:text;not null" json:"name"`
	Slug                 string          `gorm:"type:text;not null" json:"slug"`
	Plan                 string          `gorm:"type:text;not null" json:"plan"`
	InvoicesMonthCount   int64           `gorm:"not null" json:"invoices_month_count"`
	QuotesMonthCount     int64           `gorm:"not null" json:"quotes_month_count"`
	CountersPeriod       string          `gorm:"type:text;not null" json:"counters_period"`
	CountersResetAt      *time.Time      `json:"counters_reset_at,omitempty"`
	StripeAccountID      *string         `gorm:"type:text" json:"stripe_account_id,omitempty"`
	StripeChargesEnabled bool            `gorm:"not null" json:"stripe_charges_enabled"`
	StripeSecretKeyEnc   *string         `gorm:"type:text" json:"-"`
	StripePublishableKey *string         `gorm:"type:text" json:"stripe_publishable_key,omitempty"`
	CommissionRate       decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"commission_rate"`
	CreatedAt            time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

// ConnectAccountID returns the linked Stripe Connect account, if any.
func (o Organization) ConnectAccountID() string {
	if o.StripeAccountID == nil {
		return ""
	}
	return *o.StripeAccountID
}

// RoutesThroughPlatform reports whether checkout must be a destination
// charge on the platform account with a commission fee.
func (o Organization) RoutesThroughPlatform() bool {
	return o.Plan == PlanFree && o.CommissionRate.GreaterThan(decimal.Zero)
}

func (o Organization) HasOwnStripeKey() bool {
	return o.StripeSecretKeyEnc != nil && *o.StripeSecretKeyEnc != ""
}

const (
	PlanFree    = config.PlanFree
	PlanStarter = config.PlanStarter
	PlanPro     = config.PlanPro
)

func ValidPlan(plan string) bool {
	switch plan {
	case PlanFree, PlanStarter, PlanPro:
		return true
	default:
		return false
	}
}

type Member struct {
	OrgID     snowflake.ID `gorm:"primaryKey" json:"org_id"`
	UserID    snowflake.ID `gorm:"primaryKey" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Member) TableName() string { return "organization_members" }
