package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Repo  domain.Repository
	Clock clock.Clock
	Log   *zap.Logger
}

type service struct {
	db    *gorm.DB
	repo  domain.Repository
	clock clock.Clock
	log   *zap.Logger
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		repo:  p.Repo,
		clock: p.Clock,
		log:   p.Log.Named("sequence.service"),
	}
}

func (s *service) Next(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, docType domain.DocType) (string, error) {
	if _, err := domain.ParseDocType(string(docType)); err != nil {
		return "", err
	}
	now := s.clock.Now()

	if err := s.repo.EnsureDefault(ctx, tx, s.defaults(orgID, docType, now)); err != nil {
		return "", err
	}
	if err := s.repo.Increment(ctx, tx, orgID, docType, now); err != nil {
		return "", err
	}
	seq, err := s.repo.Find(ctx, tx, orgID, docType)
	if err != nil {
		return "", err
	}
	if seq == nil {
		return "", gorm.ErrRecordNotFound
	}
	return seq.Format(now.Year(), seq.CurrentNumber), nil
}

func (s *service) Get(ctx context.Context, orgID snowflake.ID, docType domain.DocType) (*domain.Sequence, error) {
	if _, err := domain.ParseDocType(string(docType)); err != nil {
		return nil, err
	}
	seq, err := s.repo.Find(ctx, s.db, orgID, docType)
	if err != nil {
		return nil, err
	}
	if seq == nil {
		defaults := s.defaults(orgID, docType, s.clock.Now())
		return &defaults, nil
	}
	return seq, nil
}

func (s *service) UpdateConfig(ctx context.Context, orgID snowflake.ID, docType domain.DocType, req domain.UpdateRequest) (*domain.Sequence, error) {
	if _, err := domain.ParseDocType(string(docType)); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var updated domain.Sequence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.EnsureDefault(ctx, tx, s.defaults(orgID, docType, now)); err != nil {
			return err
		}
		current, err := s.repo.Find(ctx, tx, orgID, docType)
		if err != nil {
			return err
		}
		if current == nil {
			return gorm.ErrRecordNotFound
		}

		cfg, err := req.Apply(*current)
		if err != nil {
			return err
		}
		if cfg.CurrentNumber < current.CurrentNumber {
			return domain.ErrSequenceRewind
		}
		cfg.UpdatedAt = now

		ok, err := s.repo.UpdateConfig(ctx, tx, cfg)
		if err != nil {
			return err
		}
		if !ok {
			// a concurrent Next moved the counter past the requested value
			return domain.ErrSequenceRewind
		}
		updated = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sequence config updated",
		zap.String("org_id", orgID.String()),
		zap.String("doc_type", string(docType)),
		zap.Int64("current_number", updated.CurrentNumber),
	)
	return &updated, nil
}

// Preview returns the number the next document would receive.
func (s *service) Preview(ctx context.Context, orgID snowflake.ID, docType domain.DocType) (string, error) {
	seq, err := s.Get(ctx, orgID, docType)
	if err != nil {
		return "", err
	}
	return seq.Format(s.clock.Now().Year(), seq.CurrentNumber+1), nil
}

func (s *service) defaults(orgID snowflake.ID, docType domain.DocType, now time.Time) domain.Sequence {
	seq := domain.Defaults(orgID, docType)
	seq.UpdatedAt = now
	return seq
}
