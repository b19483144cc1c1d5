package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Next advances the counter inside tx and returns the formatted number.
	// The caller's transaction must commit for the number to be consumed.
	Next(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, docType DocType) (string, error)
	Get(ctx context.Context, orgID snowflake.ID, docType DocType) (*Sequence, error)
	UpdateConfig(ctx context.Context, orgID snowflake.ID, docType DocType, req UpdateRequest) (*Sequence, error)
	Preview(ctx context.Context, orgID snowflake.ID, docType DocType) (string, error)
}
