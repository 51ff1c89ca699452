package model

import (
	"encoding/json"
	"time"
)

const (
	EntryTypeRedeem       = "REDEEM"
	EntryTypeRedeemRefund = "REDEEM_REFUND"
	EntryTypeAdjustment   = "ADJUSTMENT"
)

// Ledger sources are keyed to the entry type that produced them.
const (
	SourceRewardRedeem       = "REWARD_REDEEM"
	SourceRewardRedeemRefund = "REWARD_REDEEM_REFUND"
	SourceAdminAdjustment    = "ADMIN_ADJUSTMENT"
)

// LedgerEntry is an append-only record of a points movement. Points is
// signed: negative for spend, positive for refunds and upward adjustments.
type LedgerEntry struct {
	ID                    int64     `json:"-"`
	EntryID               string    `json:"entry_id"`
	UserID                string    `json:"user_id"`
	EntryType             string    `json:"entry_type"`
	Points                int64     `json:"points"`
	Source                string    `json:"source,omitempty"`
	ReferenceRedemptionID string    `json:"reference_redemption_id,omitempty"`
	ReferenceRewardCode   string    `json:"reference_reward_code,omitempty"`
	Note                  string    `json:"note,omitempty"`
	CreatedBy             string    `json:"created_by,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

func (entry *LedgerEntry) ToJSON() ([]byte, error) {
	return json.Marshal(entry)
}
