package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shipbox/billing/internal/domain/ledger"
)

// UserBalanceModel is the persistence model for a user's running balance.
// Timestamps are unix seconds.
// LastSeq is the sequence number of the user's latest transaction.
type UserBalanceModel struct {
	UserID            string  `gorm:"type:varchar(255);primaryKey"`
	BalanceCredits    int64   `gorm:"not null"`
	UpdatedAt         int64   `gorm:"not null;autoUpdateTime:false"`
	PaymentCustomerID *string `gorm:"type:varchar(255)"`
	LastSeq           int64   `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (UserBalanceModel) TableName() string {
	return "user_balances"
}

// ToDomain converts the persistence model to a domain UserBalance
func (m *UserBalanceModel) ToDomain() *ledger.UserBalance {
	b := &ledger.UserBalance{
		UserID:         m.UserID,
		BalanceCredits: m.BalanceCredits,
		UpdatedAt:      time.Unix(m.UpdatedAt, 0).UTC(),
	}
	if m.PaymentCustomerID != nil {
		b.PaymentCustomerID = *m.PaymentCustomerID
	}
	return b
}

// TransactionModel is the persistence model for an immutable ledger transaction.
// Seq numbers a user's transactions in commit order and breaks ties between
// transactions created in the same second.
type TransactionModel struct {
	ID            string `gorm:"type:varchar(36);primaryKey"`
	UserID        string `gorm:"type:varchar(255);not null;index:idx_transactions_user_created,priority:1"`
	AmountCredits int64  `gorm:"not null"`
	Type          string `gorm:"type:varchar(20);not null"`
	Description   string `gorm:"type:text"`
	CreatedAt     int64  `gorm:"not null;autoCreateTime:false;index:idx_transactions_user_created,priority:2"`
	Seq           int64  `gorm:"not null;default:0;index:idx_transactions_user_created,priority:3"`
	Metadata      string `gorm:"type:text"`
	BalanceAfter  int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "transactions"
}

// ToDomain converts the persistence model to a domain Transaction
func (m *TransactionModel) ToDomain() (*ledger.Transaction, error) {
	tx := &ledger.Transaction{
		ID:            m.ID,
		UserID:        m.UserID,
		AmountCredits: m.AmountCredits,
		Type:          ledger.TransactionType(m.Type),
		Description:   m.Description,
		CreatedAt:     time.Unix(m.CreatedAt, 0).UTC(),
		BalanceAfter:  m.BalanceAfter,
	}
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &tx.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of transaction %s: %w", m.ID, err)
		}
	}
	return tx, nil
}

// TransactionModelFromDomain creates a new persistence model from a domain Transaction
func TransactionModelFromDomain(tx *ledger.Transaction) (*TransactionModel, error) {
	metadata := tx.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return &TransactionModel{
		ID:            tx.ID,
		UserID:        tx.UserID,
		AmountCredits: tx.AmountCredits,
		Type:          tx.Type.String(),
		Description:   tx.Description,
		CreatedAt:     tx.CreatedAt.Unix(),
		Metadata:      string(raw),
		BalanceAfter:  tx.BalanceAfter,
	}, nil
}

// IdempotencyKeyModel records a consumed idempotency key. The primary key
// constraint is what makes a replayed entry fail.
type IdempotencyKeyModel struct {
	Key           string `gorm:"type:varchar(255);primaryKey"`
	UserID        string `gorm:"type:varchar(255);not null"`
	TransactionID string `gorm:"type:varchar(36);not null"`
	CreatedAt     int64  `gorm:"not null;autoCreateTime:false"`
}

// TableName returns the table name for GORM
func (IdempotencyKeyModel) TableName() string {
	return "ledger_idempotency_keys"
}

// UserSessionModel is a read-only view of the sandbox sessions table owned
// by the orchestrator. Only the ownership columns are mapped.
type UserSessionModel struct {
	ID        string `gorm:"type:varchar(255);primaryKey"`
	UserID    string `gorm:"type:varchar(255);not null;index"`
	CreatedAt int64  `gorm:"not null;autoCreateTime:false"`
}

// TableName returns the table name for GORM
func (UserSessionModel) TableName() string {
	return "user_sessions"
}

// LedgerModels returns every model backing the ledger, in dependency order
func LedgerModels() []any {
	return []any{
		&UserBalanceModel{},
		&TransactionModel{},
		&IdempotencyKeyModel{},
		&UserSessionModel{},
	}
}
