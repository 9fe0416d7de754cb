package services

import (
	"context"
	"sync"
	"time"

	"github.com/coinflip-escrow/backend/internal/models"
	"github.com/google/uuid"
)

// AuditStore is satisfied by repositories.AuditRepo and MemoryAudit.
type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType, entityKey string, limit, offset int) ([]models.AuditLog, error)
}

// MemoryAudit keeps the audit trail in process for STORAGE=memory.
type MemoryAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) Log(_ context.Context, entry models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, entry)
	return nil
}

// GetByEntity returns newest entries first.
func (m *MemoryAudit) GetByEntity(_ context.Context, entityType, entityKey string, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AuditLog
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.EntityType != entityType || e.EntityKey != entityKey {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
