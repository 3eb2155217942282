package persistence

import (
	"context"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSessionCounter counts the sandbox sessions a user owns.
// Every row in user_sessions counts; the orchestrator deletes rows when a
// sandbox is torn down.
type GormSessionCounter struct {
	db *gorm.DB
}

// NewGormSessionCounter creates a new GormSessionCounter
func NewGormSessionCounter(db *gorm.DB) *GormSessionCounter {
	return &GormSessionCounter{db: db}
}

// CountSessions returns the number of sessions owned by the user
func (c *GormSessionCounter) CountSessions(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&models.UserSessionModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, ledger.NewLedgerReadError("count_sessions", userID, err)
	}
	return count, nil
}
