package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, org Organization) error
	AddMember(ctx context.Context, member Member) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindByStripeAccountID(ctx context.Context, accountID string) (*Organization, error)
	ListMemberIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)

	UpdateStripeCredentials(ctx context.Context, orgID snowflake.ID, secretKeyEnc, publishableKey string, now time.Time) (bool, error)
	UpdateConnectAccount(ctx context.Context, orgID snowflake.ID, accountID string, now time.Time) (bool, error)
	UpdateChargesEnabled(ctx context.Context, orgID snowflake.ID, enabled bool, now time.Time) error
	UpdatePlan(ctx context.Context, orgID snowflake.ID, plan string, commissionRate decimal.Decimal, now time.Time) (bool, error)
}
