package model

import (
	"errors"
	"time"
)

// Balance tracks a user's points. AvailablePoints and RedeemedPoints never
// go below zero; every mutation here keeps that invariant, and the store
// enforces it again with conditional updates.
type Balance struct {
	ID              int64     `json:"-"`
	UserID          string    `json:"user_id"`
	AvailablePoints int64     `json:"available_points"`
	RedeemedPoints  int64     `json:"redeemed_points"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ApplyRedemptionDebit moves points from available to redeemed when a
// redemption is requested.
func (balance *Balance) ApplyRedemptionDebit(points int64) error {
	if points <= 0 {
		return errors.New("points must be positive")
	}
	if balance.AvailablePoints < points {
		return errors.New("insufficient available points")
	}
	balance.AvailablePoints -= points
	balance.RedeemedPoints += points
	return nil
}

// ApplyRefund returns points to available when a redemption is rejected.
// RedeemedPoints is floored at zero so a refund can never drive it negative,
// even for redemptions requested before redeemed tracking existed.
func (balance *Balance) ApplyRefund(points int64) {
	balance.AvailablePoints += points
	balance.RedeemedPoints -= points
	if balance.RedeemedPoints < 0 {
		balance.RedeemedPoints = 0
	}
}

// ApplyAdjustment applies a signed admin delta to available points.
func (balance *Balance) ApplyAdjustment(delta int64) error {
	if balance.AvailablePoints+delta < 0 {
		return errors.New("adjustment would make available points negative")
	}
	balance.AvailablePoints += delta
	return nil
}
