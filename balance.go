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

	"github.com/tallyhq/tally/internal/notification"
	"github.com/tallyhq/tally/model"
)

// CreateBalance creates a points balance for a user.
func (l *Tally) CreateBalance(ctx context.Context, balance model.Balance) (model.Balance, error) {
	return l.datasource.CreateBalance(ctx, balance)
}

// GetBalance retrieves a user's points balance.
func (l *Tally) GetBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return l.datasource.GetBalanceByUserID(ctx, userID)
}

// AdjustBalance applies a signed admin delta to a user's available points.
// The adjustment and its ledger entry are written atomically; an adjustment
// that would overdraw the balance fails and writes nothing.
func (l *Tally) AdjustBalance(ctx context.Context, userID string, delta int64, note, actor string) (*model.Balance, error) {
	ctx, span := tracer.Start(ctx, "Adjusting Balance")
	defer span.End()

	locker, err := l.acquireLock(ctx, userID)
	if err != nil {
		return nil, logAndRecordError(span, "lock error", err)
	}
	defer l.releaseLock(ctx, locker)

	balance, err := l.datasource.AdjustBalance(ctx, userID, delta, note, actor)
	if err != nil {
		return nil, logAndRecordError(span, "adjust balance error", err)
	}

	go func() {
		err := SendWebhook(NewWebhook{
			Event:   "balance.adjusted",
			Payload: balance,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()

	return balance, nil
}
