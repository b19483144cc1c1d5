package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, ownerID snowflake.ID, req CreateRequest) (*Organization, error)
	Get(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	MemberIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)
	SetStripeCredentials(ctx context.Context, orgID snowflake.ID, req StripeCredentialsRequest) error
	LinkConnectAccount(ctx context.Context, orgID snowflake.ID, accountID string) error
	ChangePlan(ctx context.Context, orgID snowflake.ID, plan string, commissionRate decimal.Decimal) error
}

type CreateRequest struct {
	Name           string
	Plan           string
	CommissionRate decimal.Decimal
}

type StripeCredentialsRequest struct {
	SecretKey      string
	PublishableKey string
}

var (
	ErrNotFound              = errors.New("organization_not_found")
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidUser           = errors.New("invalid_user")
	ErrInvalidPlan           = errors.New("invalid_plan")
	ErrInvalidCommissionRate = errors.New("invalid_commission_rate")
	ErrInvalidSecretKey      = errors.New("invalid_secret_key")
	ErrInvalidPublishableKey = errors.New("invalid_publishable_key")
	ErrInvalidAccountID      = errors.New("invalid_account_id")
)
