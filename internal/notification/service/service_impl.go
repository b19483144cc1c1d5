package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/notification/domain"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxFanOut bounds concurrent inserts when notifying a whole organization.
const maxFanOut = 4

type Params struct {
	fx.In

	DB      *gorm.DB
	Repo    domain.Repository
	Members domain.MemberLister
	GenID   *snowflake.Node
	Clock   clock.Clock
	Log     *zap.Logger
}

type service struct {
	db      *gorm.DB
	repo    domain.Repository
	members domain.MemberLister
	genID   *snowflake.Node
	clock   clock.Clock
	log     *zap.Logger
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		repo:    p.Repo,
		members: p.Members,
		genID:   p.GenID,
		clock:   p.Clock,
		log:     p.Log.Named("notification.service"),
	}
}

func (s *service) NotifyUser(ctx context.Context, orgID, userID snowflake.ID, msg domain.Message) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	if strings.TrimSpace(msg.Kind) == "" {
		return domain.ErrInvalidKind
	}

	data := datatypes.JSON("{}")
	if len(msg.Data) > 0 {
		raw, err := json.Marshal(msg.Data)
		if err != nil {
			return err
		}
		data = datatypes.JSON(raw)
	}

	return s.repo.Insert(ctx, s.db, domain.Notification{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Kind:      msg.Kind,
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      data,
		CreatedAt: s.clock.Now(),
	})
}

// NotifyMembers addresses msg to every member of the organization. Each
// recipient is attempted; the joined error reports the ones that failed.
func (s *service) NotifyMembers(ctx context.Context, orgID snowflake.ID, msg domain.Message) error {
	memberIDs, err := s.members.MemberIDs(ctx, orgID)
	if err != nil {
		return err
	}

	p := pool.New().WithMaxGoroutines(maxFanOut).WithErrors()
	for _, userID := range memberIDs {
		userID := userID // per-iteration copy for the closure (go 1.21 loop semantics)
		p.Go(func() error {
			if err := s.NotifyUser(ctx, orgID, userID, msg); err != nil {
				s.log.Warn("member notification failed",
					zap.String("org_id", orgID.String()),
					zap.String("user_id", userID.String()),
					zap.String("kind", msg.Kind),
					zap.Error(err),
				)
				return err
			}
			return nil
		})
	}
	return p.Wait()
}

func (s *service) List(ctx context.Context, orgID, userID snowflake.ID, page pagination.Pagination) ([]domain.Notification, pagination.PageInfo, error) {
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	var beforeID snowflake.ID
	if cursor != nil {
		beforeID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.PageInfo{}, pagination.ErrInvalidPageToken
		}
	}

	limit := page.Limit()
	items, err := s.repo.List(ctx, s.db, orgID, userID, beforeID, limit+1)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	items, info := pagination.Page(items, limit, func(n domain.Notification) string { return n.ID.String() })
	return items, info, nil
}

func (s *service) MarkRead(ctx context.Context, orgID, userID, id snowflake.ID) error {
	ok, err := s.repo.MarkRead(ctx, s.db, orgID, userID, id, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}
