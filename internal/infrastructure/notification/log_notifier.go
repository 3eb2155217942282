package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log instead of delivering them.
// Used when no email queue is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendWelcome(ctx context.Context, userID string, credits int64) error {
	return n.log(welcomeMessage(userID, credits))
}

func (n *LogNotifier) SendLowBalance(ctx context.Context, userID string, balanceCredits int64) error {
	return n.log(lowBalanceMessage(userID, balanceCredits))
}

func (n *LogNotifier) SendReceipt(ctx context.Context, userID, email string, amountCredits, balanceCredits int64) error {
	return n.log(receiptMessage(userID, email, amountCredits, balanceCredits))
}

func (n *LogNotifier) log(msg Message) error {
	n.logger.Info("Notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("user_id", msg.UserID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
