package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the slice of a user the cup-service needs: wallet state and
// gamification counters. The wallet balance must never go negative as an
// effect of a deposit debit; the store enforces that with a balance guard in
// the same statement as the debit.
type User struct {
	ID            uuid.UUID `json:"id"`
	AuthSubject   string    `json:"-"`
	Email         string    `json:"email"`
	WalletBalance int64     `json:"wallet_balance"`
	WalletFrozen  bool      `json:"wallet_frozen"`
	IsBlacklisted bool      `json:"is_blacklisted"`
	GreenPoints   int       `json:"green_points"`
	CupsSaved     int       `json:"cups_saved"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Rank thresholds for accumulated green points. Promotion is evaluated at
// return time from the post-award total.
const (
	RankSeedling = "seedling"
	RankSprout   = "sprout"
	RankTree     = "tree"
	RankForest   = "forest"
)

// RankForPoints maps a lifetime green-point total to a rank name.
func RankForPoints(points int) string {
	switch {
	case points >= 1500:
		return RankForest
	case points >= 500:
		return RankTree
	case points >= 200:
		return RankSprout
	default:
		return RankSeedling
	}
}
