// Package notification delivers user-facing billing messages: welcome,
// low-balance warnings and payment receipts.
package notification

import (
	"fmt"

	"github.com/shipbox/billing/internal/domain/ledger"
)

// Kind identifies a message template
type Kind string

const (
	KindWelcome    Kind = "welcome"
	KindLowBalance Kind = "low_balance"
	KindReceipt    Kind = "receipt"
)

const signature = "\n\n- The Shipbox Team"

// Message is a rendered notification
type Message struct {
	Kind    Kind
	UserID  string
	To      string
	Subject string
	Body    string
}

func welcomeMessage(userID string, credits int64) Message {
	return Message{
		Kind:    KindWelcome,
		UserID:  userID,
		Subject: "Welcome to Shipbox",
		Body: fmt.Sprintf("Your account is ready. We've added %d starter credits (%s) so you can launch your first sandbox.",
			credits, ledger.FormatCredits(credits)) + signature,
	}
}

func lowBalanceMessage(userID string, balance int64) Message {
	return Message{
		Kind:    KindLowBalance,
		UserID:  userID,
		Subject: "Your Shipbox balance is running low",
		Body: fmt.Sprintf("Your balance is down to %d credits (%s). Top up from the billing page to keep your sandboxes running.",
			balance, ledger.FormatCredits(balance)) + signature,
	}
}

func receiptMessage(userID, email string, amount, balance int64) Message {
	return Message{
		Kind:    KindReceipt,
		UserID:  userID,
		To:      email,
		Subject: "Shipbox payment receipt",
		Body: fmt.Sprintf("Thanks for your payment of %s. %d credits have been added to your account.\nNew balance: %d credits (%s).",
			ledger.FormatCredits(amount), amount, balance, ledger.FormatCredits(balance)) + signature,
	}
}
