package repositories

import (
	"context"

	"github.com/coinflip-escrow/backend/internal/models"
)

type AuditRepo struct {
	db DBTX
}

func NewAuditRepo(db DBTX) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (actor, actor_type, action, entity_type, entity_key, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.Actor, entry.ActorType, entry.Action, entry.EntityType, entry.EntityKey, entry.Meta)
	return err
}

func (r *AuditRepo) GetByEntity(ctx context.Context, entityType, entityKey string, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, actor, actor_type, action, entity_type, entity_key, meta, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_key = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, entityType, entityKey, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.Actor, &l.ActorType, &l.Action, &l.EntityType, &l.EntityKey, &l.Meta, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}
