package ledger

import "time"

// UserBalance is the running credit balance of one user
type UserBalance struct {
	UserID            string
	BalanceCredits    int64
	UpdatedAt         time.Time
	PaymentCustomerID string
}

// ZeroBalance is the logical balance of a user that has no ledger history yet
func ZeroBalance(userID string) *UserBalance {
	return &UserBalance{UserID: userID}
}

// IsFunded reports whether the balance can pay for new work
func (b *UserBalance) IsFunded() bool {
	return b.BalanceCredits > 0
}

// Stats summarizes the ledger for operators
type Stats struct {
	TotalUsers          int64
	ActiveUsers24h      int64
	TotalRevenueCredits int64
	RevenueTodayCredits int64
}
