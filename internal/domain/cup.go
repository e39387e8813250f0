/**
 * @description
 * This file defines the core domain models for the cup-service: the reusable
 * cup itself and the partner store that holds it. These structs map directly
 * to the `cups` and `stores` tables.
 *
 * @notes
 * - Monetary amounts throughout the service are `int64` in the smallest
 *   currency unit (VND has no subunit, so 20000 means 20,000 VND).
 * - Cup IDs are stable external codes printed on the cup (8-digit), not UUIDs.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// CupStatus enumerates the states of the cup lifecycle state machine.
type CupStatus string

const (
	CupStatusAvailable CupStatus = "available"
	CupStatusInUse     CupStatus = "in_use"
	CupStatusCleaning  CupStatus = "cleaning"
	CupStatusLost      CupStatus = "lost"
	CupStatusBroken    CupStatus = "broken"
)

// CupMaterial enumerates the cup build materials.
type CupMaterial string

const (
	MaterialPPPlastic   CupMaterial = "pp_plastic"
	MaterialBambooFiber CupMaterial = "bamboo_fiber"
)

// Cup represents a single physical cup. Its status is the lock-equivalent
// resource for a borrow/return pair: `in_use` implies CurrentUserID and
// CurrentTransactionID are both set, `available` implies both are nil.
type Cup struct {
	ID                   string      `json:"id"`
	Material             CupMaterial `json:"material"`
	Status               CupStatus   `json:"status"`
	StoreID              uuid.UUID   `json:"store_id"`
	CurrentUserID        *uuid.UUID  `json:"current_user_id,omitempty"`
	CurrentTransactionID *uuid.UUID  `json:"current_transaction_id,omitempty"`
	TotalUses            int         `json:"total_uses"`
	RetiredReason        *string     `json:"retired_reason,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Retired reports whether the cup has left circulation.
func (c *Cup) Retired() bool {
	return c.Status == CupStatusLost || c.Status == CupStatusBroken
}

// Store represents a partner location holding cups. The three counters are
// denormalized from cup statuses and are only ever adjusted inside the same
// database transaction as the corresponding cup write.
type Store struct {
	ID                uuid.UUID `json:"id"`
	PartnerID         uuid.UUID `json:"partner_id"`
	Name              string    `json:"name"`
	AvailableCount    int       `json:"available_count"`
	InUseCount        int       `json:"in_use_count"`
	CleaningCount     int       `json:"cleaning_count"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	ContractType      string    `json:"contract_type"` // 'revenue_share', 'fixed_fee', 'hybrid'
	CommissionPercent float64   `json:"commission_percent"`
	FixedFee          int64     `json:"fixed_fee"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BulkCupImport is the DTO for the admin bulk provisioning endpoint.
type BulkCupImport struct {
	StoreID  uuid.UUID   `json:"store_id"`
	Material CupMaterial `json:"material"`
	CupIDs   []string    `json:"cup_ids"`
}

// CupReportRequest is the DTO for admin loss/damage reporting and manual
// reinstatement of a retired cup.
type CupReportRequest struct {
	CupID  string `json:"cup_id"`
	Action string `json:"action"` // 'lost', 'broken', 'reinstate', 'mark_cleaned'
	Reason string `json:"reason,omitempty"`
}
