package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/sequence/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) EnsureDefault(ctx context.Context, db *gorm.DB, seq domain.Sequence) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO document_sequences (org_id, doc_type, prefix, suffix, current_number, padding_length, include_year, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, doc_type) DO NOTHING`,
		seq.OrgID,
		seq.DocType,
		seq.Prefix,
		seq.Suffix,
		seq.CurrentNumber,
		seq.PaddingLength,
		seq.IncludeYear,
		seq.UpdatedAt,
	).Error
}

// Increment takes the row lock for the rest of the caller's transaction.
func (r *repository) Increment(ctx context.Context, db *gorm.DB, orgID snowflake.ID, docType domain.DocType, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE document_sequences SET current_number = current_number + 1, updated_at = ?
		 WHERE org_id = ? AND doc_type = ?`,
		now, orgID, docType,
	).Error
}

func (r *repository) Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID, docType domain.DocType) (*domain.Sequence, error) {
	var rows []domain.Sequence
	err := db.WithContext(ctx).Raw(
		`SELECT org_id, doc_type, prefix, suffix, current_number, padding_length, include_year, updated_at
		 FROM document_sequences
		 WHERE org_id = ? AND doc_type = ?`,
		orgID, docType,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) UpdateConfig(ctx context.Context, db *gorm.DB, cfg domain.Sequence) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE document_sequences
		 SET prefix = ?, suffix = ?, padding_length = ?, include_year = ?, current_number = ?, updated_at = ?
		 WHERE org_id = ? AND doc_type = ? AND current_number <= ?`,
		cfg.Prefix,
		cfg.Suffix,
		cfg.PaddingLength,
		cfg.IncludeYear,
		cfg.CurrentNumber,
		cfg.UpdatedAt,
		cfg.OrgID,
		cfg.DocType,
		cfg.CurrentNumber,
	)
	return result.RowsAffected > 0, result.Error
}
