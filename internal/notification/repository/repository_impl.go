package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/notification/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, n domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, org_id, user_id, kind, title, body, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.OrgID,
		n.UserID,
		n.Kind,
		n.Title,
		n.Body,
		n.Data,
		n.CreatedAt,
	).Error
}

func (r *repository) List(ctx context.Context, db *gorm.DB, orgID, userID, beforeID snowflake.ID, limit int) ([]domain.Notification, error) {
	query := `SELECT id, org_id, user_id, kind, title, body, data, read_at, created_at
		FROM notifications
		WHERE org_id = ? AND user_id = ?`
	args := []any{orgID, userID}
	if beforeID != 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var items []domain.Notification
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) MarkRead(ctx context.Context, db *gorm.DB, orgID, userID, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE notifications SET read_at = ?
		 WHERE id = ? AND org_id = ? AND user_id = ? AND read_at IS NULL`,
		at, id, orgID, userID,
	)
	return result.RowsAffected > 0, result.Error
}
