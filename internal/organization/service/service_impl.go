package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/organization/domain"
	"github.com/smallbiznis/atelier/internal/secret"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Repo   domain.Repository
	GenID  *snowflake.Node
	Cipher *secret.Cipher
	Clock  clock.Clock
	Log    *zap.Logger
}

type service struct {
	db     *gorm.DB
	repo   domain.Repository
	genID  *snowflake.Node
	cipher *secret.Cipher
	clock  clock.Clock
	log    *zap.Logger
}

func NewService(p Params) domain.Service {
	return &service{
		db:     p.DB,
		repo:   p.Repo,
		genID:  p.GenID,
		cipher: p.Cipher,
		clock:  p.Clock,
		log:    p.Log.Named("organization.service"),
	}
}

var maxCommissionRate = decimal.RequireFromString("0.5")

func (s *service) Create(ctx context.Context, ownerID snowflake.ID, req domain.CreateRequest) (*domain.Organization, error) {
	if ownerID == 0 {
		return nil, domain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	plan := strings.ToLower(strings.TrimSpace(req.Plan))
	if plan == "" {
		plan = domain.PlanFree
	}
	if !domain.ValidPlan(plan) {
		return nil, domain.ErrInvalidPlan
	}
	if err := validateCommission(req.CommissionRate); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	id := s.genID.Generate()
	org := domain.Organization{
		ID:             id,
		Name:           name,
		Slug:           slug.Make(name) + "-" + id.Base36(),
		Plan:           plan,
		CountersPeriod: now.Format("2006-01"),
		CommissionRate: req.CommissionRate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, org); err != nil {
			return err
		}
		return repo.AddMember(ctx, domain.Member{
			OrgID:     id,
			UserID:    ownerID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *service) Get(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	org, err := s.repo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

func (s *service) MemberIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	return s.repo.ListMemberIDs(ctx, orgID)
}

func (s *service) SetStripeCredentials(ctx context.Context, orgID snowflake.ID, req domain.StripeCredentialsRequest) error {
	secretKey := strings.TrimSpace(req.SecretKey)
	if !strings.HasPrefix(secretKey, "sk_") && !strings.HasPrefix(secretKey, "rk_") {
		return domain.ErrInvalidSecretKey
	}
	publishableKey := strings.TrimSpace(req.PublishableKey)
	if !strings.HasPrefix(publishableKey, "pk_") {
		return domain.ErrInvalidPublishableKey
	}
	if s.cipher == nil {
		return secret.ErrMissingKey
	}

	sealed, err := s.cipher.Encrypt(secretKey)
	if err != nil {
		return err
	}
	ok, err := s.repo.UpdateStripeCredentials(ctx, orgID, sealed, publishableKey, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.log.Info("stripe credentials updated", zap.String("org_id", orgID.String()))
	return nil
}

func (s *service) LinkConnectAccount(ctx context.Context, orgID snowflake.ID, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if !strings.HasPrefix(accountID, "acct_") {
		return domain.ErrInvalidAccountID
	}
	ok, err := s.repo.UpdateConnectAccount(ctx, orgID, accountID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (s *service) ChangePlan(ctx context.Context, orgID snowflake.ID, plan string, commissionRate decimal.Decimal) error {
	plan = strings.ToLower(strings.TrimSpace(plan))
	if !domain.ValidPlan(plan) {
		return domain.ErrInvalidPlan
	}
	if err := validateCommission(commissionRate); err != nil {
		return err
	}
	ok, err := s.repo.UpdatePlan(ctx, orgID, plan, commissionRate, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func validateCommission(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxCommissionRate) {
		return domain.ErrInvalidCommissionRate
	}
	return nil
}
