package domain

import (
	"time"

	"github.com/google/uuid"
)

// AchievementEvent is published to RabbitMQ when a return earns an
// achievement post (on-time return, rank promotion). Consumers build the
// social feed entry; delivery is best effort.
type AchievementEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"` // 'on_time_return', 'rank_up'
	Message   string    `json:"message"`
	Points    int       `json:"points"`
	Rank      string    `json:"rank,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EmailEvent is published after a borrow for the mailer to render and send
// asynchronously, independent of the transactional outcome.
type EmailEvent struct {
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	Template      string    `json:"template"`
	TransactionID uuid.UUID `json:"transaction_id"`
	DueTime       time.Time `json:"due_time"`
	DepositAmount int64     `json:"deposit_amount"`
	Timestamp     time.Time `json:"timestamp"`
}
