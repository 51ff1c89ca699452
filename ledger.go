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

package tally

import (
	"context"

	"github.com/tallyhq/tally/model"
)

// GetLedgerEntries retrieves a page of a user's points ledger, most recent
// first.
func (l *Tally) GetLedgerEntries(ctx context.Context, userID string, limit, offset int) ([]model.LedgerEntry, error) {
	return l.datasource.GetLedgerEntries(ctx, userID, limit, offset)
}

// GetRedemptionLedger retrieves the ledger entries written for a single
// redemption, in the order they were applied.
func (l *Tally) GetRedemptionLedger(ctx context.Context, redemptionID string) ([]model.LedgerEntry, error) {
	return l.datasource.GetLedgerEntriesByRedemption(ctx, redemptionID)
}
