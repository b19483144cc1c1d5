package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	EnsureDefault(ctx context.Context, db *gorm.DB, seq Sequence) error
	Increment(ctx context.Context, db *gorm.DB, orgID snowflake.ID, docType DocType, now time.Time) error
	Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID, docType DocType) (*Sequence, error)
	// UpdateConfig writes cfg unless the stored counter is already above
	// cfg.CurrentNumber. It reports whether the row was written.
	UpdateConfig(ctx context.Context, db *gorm.DB, cfg Sequence) (bool, error)
}
