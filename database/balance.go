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
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tallyhq/tally/internal/apierror"
	"github.com/tallyhq/tally/model"
)

const balanceCacheTTL = 1 * time.Minute

// CreateBalance inserts a new balance row for a user. Negative starting
// points are rejected before the insert is attempted.
func (d Datasource) CreateBalance(ctx context.Context, balance model.Balance) (model.Balance, error) {
	if balance.AvailablePoints < 0 || balance.RedeemedPoints < 0 {
		return model.Balance{}, apierror.NewAPIError(apierror.ErrInvalidInput, "Balance points cannot be negative", nil)
	}

	balance.CreatedAt = time.Now()
	balance.UpdatedAt = balance.CreatedAt

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO tally.balances (user_id, available_points, redeemed_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, balance.UserID, balance.AvailablePoints, balance.RedeemedPoints, balance.CreatedAt, balance.UpdatedAt).Scan(&balance.ID)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Balance{}, apierror.NewAPIError(apierror.ErrConflict, "Balance for this user already exists", err)
			default:
				return model.Balance{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Balance{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create balance", err)
	}

	return balance, nil
}

func (d Datasource) GetBalanceByUserID(ctx context.Context, userID string) (*model.Balance, error) {
	var cached model.Balance
	err := d.Cache.Get(ctx, "balance:"+userID, &cached)
	if err == nil && cached.UserID != "" {
		return &cached, nil
	}

	var balance model.Balance
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, user_id, available_points, redeemed_points, created_at, updated_at
		FROM tally.balances
		WHERE user_id = $1
	`, userID)

	err = row.Scan(&balance.ID, &balance.UserID, &balance.AvailablePoints, &balance.RedeemedPoints, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Balance for user '%s' not found", userID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan balance data", err)
	}

	_ = d.Cache.Set(ctx, "balance:"+userID, &balance, balanceCacheTTL)
	return &balance, nil
}

// AdjustBalance applies a signed admin delta to a user's available points
// and records the matching ADJUSTMENT ledger entry in one transaction. The
// update is conditional on the result staying non-negative; a delta that
// would overdraw the balance fails with INVALID_INPUT and writes nothing.
func (d Datasource) AdjustBalance(ctx context.Context, userID string, delta int64, note, actor string) (*model.Balance, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE tally.balances
		SET available_points = available_points + $2, updated_at = NOW()
		WHERE user_id = $1 AND available_points + $2 >= 0
	`, userID, delta)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to adjust balance", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		// Either the user has no balance row or the delta would overdraw it.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tally.balances WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check balance existence", err)
		}
		if !exists {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Balance for user '%s' not found", userID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Adjustment would make available points negative", fmt.Sprintf("user '%s' delta %d", userID, delta))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tally.reward_ledger (entry_id, user_id, entry_type, points, source, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, model.GenerateUUIDWithSuffix("lde"), userID, model.EntryTypeAdjustment, delta, model.SourceAdminAdjustment, note, actor)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record adjustment ledger entry", err)
	}

	var balance model.Balance
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, available_points, redeemed_points, created_at, updated_at
		FROM tally.balances
		WHERE user_id = $1
	`, userID).Scan(&balance.ID, &balance.UserID, &balance.AvailablePoints, &balance.RedeemedPoints, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read adjusted balance", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	_ = d.Cache.Delete(ctx, "balance:"+userID)
	return &balance, nil
}
