package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shipbox/billing/internal/domain/ledger"
	"github.com/shipbox/billing/internal/domain/shared"
	"github.com/shipbox/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerStore implements ledger.Store on a relational database.
//
// Balance updates are relative increments inside a database transaction, so
// concurrent commits for the same user serialize on the balance row and
// never lose an update. The db must be opened with TranslateError so that
// unique violations surface as gorm.ErrDuplicatedKey.
type GormLedgerStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ledger.Store = (*GormLedgerStore)(nil)

// LedgerStoreOption configures a GormLedgerStore
type LedgerStoreOption func(*GormLedgerStore)

// WithClock overrides the time source used for transaction timestamps
func WithClock(now func() time.Time) LedgerStoreOption {
	return func(s *GormLedgerStore) {
		s.now = now
	}
}

// NewGormLedgerStore creates a new GormLedgerStore
func NewGormLedgerStore(db *gorm.DB, opts ...LedgerStoreOption) *GormLedgerStore {
	s := &GormLedgerStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyTransaction appends the entry and increments the balance in one database transaction
func (s *GormLedgerStore) ApplyTransaction(ctx context.Context, entry ledger.Entry) (*ledger.Transaction, error) {
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	tx := ledger.NewTransaction(entry, s.now())
	ts := tx.CreatedAt.Unix()

	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if entry.IdempotencyKey != "" {
			key := &models.IdempotencyKeyModel{
				Key:           entry.IdempotencyKey,
				UserID:        entry.UserID,
				TransactionID: tx.ID,
				CreatedAt:     ts,
			}
			if err := db.Create(key).Error; err != nil {
				return err
			}
		}

		after, err := incrementBalance(db, entry, ts)
		if err != nil {
			return err
		}
		tx.BalanceAfter = after.BalanceCredits

		model, err := models.TransactionModelFromDomain(tx)
		if err != nil {
			return err
		}
		model.Seq = after.LastSeq
		return db.Create(model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ledger.ErrAlreadyApplied
		}
		return nil, ledger.NewLedgerWriteError("apply", entry.UserID, err)
	}
	return tx, nil
}

// incrementBalance upserts the balance row by a relative amount, advances the
// user's transaction sequence and returns the updated row.
func incrementBalance(db *gorm.DB, entry ledger.Entry, ts int64) (*models.UserBalanceModel, error) {
	row := &models.UserBalanceModel{
		UserID:         entry.UserID,
		BalanceCredits: entry.AmountCredits,
		UpdatedAt:      ts,
		LastSeq:        1,
	}
	updates := map[string]any{
		"balance_credits": gorm.Expr("user_balances.balance_credits + ?", entry.AmountCredits),
		"last_seq":        gorm.Expr("user_balances.last_seq + 1"),
		"updated_at":      ts,
	}
	if entry.PaymentCustomerID != "" {
		row.PaymentCustomerID = &entry.PaymentCustomerID
		updates["payment_customer_id"] = entry.PaymentCustomerID
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(row).Error; err != nil {
		return nil, err
	}

	var after models.UserBalanceModel
	if err := db.Select("balance_credits", "last_seq").Where("user_id = ?", entry.UserID).Take(&after).Error; err != nil {
		return nil, err
	}
	return &after, nil
}

// GetBalance returns the user's balance, or a zero balance if the user has no ledger history
func (s *GormLedgerStore) GetBalance(ctx context.Context, userID string) (*ledger.UserBalance, error) {
	var model models.UserBalanceModel
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ZeroBalance(userID), nil
		}
		return nil, ledger.NewLedgerReadError("balance", userID, err)
	}
	return model.ToDomain(), nil
}

// GetTransactions returns the user's transactions, newest first
func (s *GormLedgerStore) GetTransactions(ctx context.Context, userID string, limit int) ([]*ledger.Transaction, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("seq DESC")
	if l := ledger.ResolveLimit(limit); l != ledger.NoLimit {
		query = query.Limit(l)
	}

	var rows []models.TransactionModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, ledger.NewLedgerReadError("transactions", userID, err)
	}

	txs := make([]*ledger.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := rows[i].ToDomain()
		if err != nil {
			return nil, ledger.NewLedgerReadError("transactions", userID, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// GetConsumption sums the absolute value of the user's debits since periodStart
func (s *GormLedgerStore) GetConsumption(ctx context.Context, userID string, periodStart time.Time) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.TransactionModel{}).
		Select("COALESCE(SUM(ABS(amount_credits)), 0)").
		Where("user_id = ? AND amount_credits < 0 AND created_at >= ?", userID, periodStart.Unix()).
		Row().Scan(&total)
	if err != nil {
		return 0, ledger.NewLedgerReadError("consumption", userID, err)
	}
	return total, nil
}

// HasTransactionOfType reports whether the user has any transaction of the given type
func (s *GormLedgerStore) HasTransactionOfType(ctx context.Context, userID string, txType ledger.TransactionType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TransactionModel{}).
		Where("user_id = ? AND type = ?", userID, txType.String()).
		Count(&count).Error
	if err != nil {
		return false, ledger.NewLedgerReadError("has_type", userID, err)
	}
	return count > 0, nil
}

// GetPaymentCustomerID returns the stored payment customer id, or "" if none
func (s *GormLedgerStore) GetPaymentCustomerID(ctx context.Context, userID string) (string, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return "", err
	}
	return balance.PaymentCustomerID, nil
}

// SetPaymentCustomerID stores the payment customer id without touching the balance
func (s *GormLedgerStore) SetPaymentCustomerID(ctx context.Context, userID, customerID string) error {
	ts := s.now().Unix()
	row := &models.UserBalanceModel{
		UserID:            userID,
		UpdatedAt:         ts,
		PaymentCustomerID: &customerID,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"payment_customer_id": customerID,
			"updated_at":          ts,
		}),
	}).Create(row).Error
	if err != nil {
		return ledger.NewLedgerWriteError("set_customer", userID, err)
	}
	return nil
}

// Stats returns ledger totals, counting "today" figures from since
func (s *GormLedgerStore) Stats(ctx context.Context, since time.Time) (*ledger.Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &ledger.Stats{}

	if err := db.Model(&models.UserBalanceModel{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, ledger.NewLedgerReadError("stats", "*", err)
	}
	if err := db.Model(&models.TransactionModel{}).
		Where("created_at >= ?", since.Unix()).
		Distinct("user_id").
		Count(&stats.ActiveUsers24h).Error; err != nil {
		return nil, ledger.NewLedgerReadError("stats", "*", err)
	}

	revenue := func(from int64) (int64, error) {
		var total int64
		err := db.Model(&models.TransactionModel{}).
			Select("COALESCE(SUM(amount_credits), 0)").
			Where("type = ? AND amount_credits > 0 AND created_at >= ?", ledger.TransactionTypeTopUp.String(), from).
			Row().Scan(&total)
		return total, err
	}
	var err error
	if stats.TotalRevenueCredits, err = revenue(0); err != nil {
		return nil, ledger.NewLedgerReadError("stats", "*", err)
	}
	if stats.RevenueTodayCredits, err = revenue(since.Unix()); err != nil {
		return nil, ledger.NewLedgerReadError("stats", "*", err)
	}
	return stats, nil
}
