package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EmailJob is the payload pushed onto the email queue. The mail worker
// resolves UserID to an address when To is empty.
type EmailJob struct {
	Kind    Kind      `json:"kind"`
	UserID  string    `json:"user_id"`
	To      string    `json:"to,omitempty"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// RedisQueueNotifier queues notifications as JSON email jobs on a Redis list
type RedisQueueNotifier struct {
	client redis.Cmdable
	queue  string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisQueueNotifier creates a notifier that LPUSHes jobs onto queue
func NewRedisQueueNotifier(client redis.Cmdable, queue string, logger *zap.Logger) *RedisQueueNotifier {
	return &RedisQueueNotifier{
		client: client,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

func (n *RedisQueueNotifier) SendWelcome(ctx context.Context, userID string, credits int64) error {
	return n.enqueue(ctx, welcomeMessage(userID, credits))
}

func (n *RedisQueueNotifier) SendLowBalance(ctx context.Context, userID string, balanceCredits int64) error {
	return n.enqueue(ctx, lowBalanceMessage(userID, balanceCredits))
}

func (n *RedisQueueNotifier) SendReceipt(ctx context.Context, userID, email string, amountCredits, balanceCredits int64) error {
	return n.enqueue(ctx, receiptMessage(userID, email, amountCredits, balanceCredits))
}

// QueueLength reports the number of jobs waiting for the mail worker
func (n *RedisQueueNotifier) QueueLength(ctx context.Context) (int64, error) {
	return n.client.LLen(ctx, n.queue).Result()
}

func (n *RedisQueueNotifier) enqueue(ctx context.Context, msg Message) error {
	job := EmailJob{
		Kind:    msg.Kind,
		UserID:  msg.UserID,
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
		Created: n.now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("notification: marshal email job: %w", err)
	}

	if err := n.client.LPush(ctx, n.queue, string(data)).Err(); err != nil {
		n.logger.Error("Failed to queue email",
			zap.String("kind", string(msg.Kind)),
			zap.String("user_id", msg.UserID),
			zap.Error(err))
		return fmt.Errorf("notification: queue %s email: %w", msg.Kind, err)
	}

	n.logger.Debug("Email queued",
		zap.String("kind", string(msg.Kind)),
		zap.String("user_id", msg.UserID))
	return nil
}
