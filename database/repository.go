/*
Copyright 2025 Tally Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"

	"github.com/tallyhq/tally/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	redemption
	reward
	rewardLedger
	balance
}

// redemption defines methods for the redemption lifecycle.
type redemption interface {
	// CreateRedemption inserts a PENDING redemption and moves its cost from
	// available to redeemed points in one transaction.
	CreateRedemption(ctx context.Context, redemption *model.Redemption) (*model.Redemption, error)
	GetRedemption(ctx context.Context, id string) (*model.Redemption, error)
	GetRedemptionsPaginated(ctx context.Context, status string, limit int, nextToken string) ([]*model.Redemption, string, error)
	// FinalizeRedemption flips a PENDING redemption to a terminal status and
	// applies its ledger and balance side effects atomically. The bool result
	// reports whether this call won the status flip; false means another
	// writer got there first and no side effects were applied.
	FinalizeRedemption(ctx context.Context, redemption *model.Redemption, status, reason, actor string) (bool, error)
}

// reward defines methods for the reward catalog.
type reward interface {
	CreateReward(ctx context.Context, reward model.Reward) (model.Reward, error)
	GetRewardByID(ctx context.Context, id string) (*model.Reward, error)
	GetRewardByCode(ctx context.Context, code string) (*model.Reward, error)
	GetAllRewards(ctx context.Context, limit, offset int) ([]model.Reward, error)
	UpdateReward(ctx context.Context, reward *model.Reward) error
	DeactivateReward(ctx context.Context, id string) error
}

// rewardLedger defines read methods for the append-only points ledger.
// Writes happen inside the redemption and balance transactions.
type rewardLedger interface {
	GetLedgerEntries(ctx context.Context, userID string, limit, offset int) ([]model.LedgerEntry, error)
	GetLedgerEntriesByRedemption(ctx context.Context, redemptionID string) ([]model.LedgerEntry, error)
	GetAllLedgerEntries(ctx context.Context, limit, offset int) ([]model.LedgerEntry, error)
}

// balance defines methods for user point balances.
type balance interface {
	CreateBalance(ctx context.Context, balance model.Balance) (model.Balance, error)
	GetBalanceByUserID(ctx context.Context, userID string) (*model.Balance, error)
	// AdjustBalance applies a signed delta to available points and records
	// the matching ADJUSTMENT ledger entry in one transaction. The update is
	// conditional: a delta that would drive available points negative fails.
	AdjustBalance(ctx context.Context, userID string, delta int64, note, actor string) (*model.Balance, error)
}
