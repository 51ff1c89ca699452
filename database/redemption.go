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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/lib/pq"

	"github.com/tallyhq/tally/internal/apierror"
	"github.com/tallyhq/tally/model"
)

const redemptionCacheTTL = 5 * time.Minute

// encodeCursor turns the internal row id of the last returned redemption
// into an opaque continuation token.
func encodeCursor(lastID int64) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(lastID, 10)))
}

func decodeCursor(token string) (int64, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// CreateRedemption inserts a PENDING redemption and debits the requesting
// user's balance in a single transaction. The debit is conditional on the
// user having enough available points, so two concurrent requests can never
// overspend a balance.
func (d Datasource) CreateRedemption(ctx context.Context, redemption *model.Redemption) (*model.Redemption, error) {
	ctx, span := otel.Tracer("redemption.database").Start(ctx, "Saving redemption to db")
	defer span.End()

	metaDataJSON, err := json.Marshal(redemption.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	// Queued redemptions arrive with their ID already assigned so retries of
	// the same task collapse into a unique violation instead of a duplicate.
	if redemption.RedemptionID == "" {
		redemption.RedemptionID = model.GenerateUUIDWithSuffix("rdm")
	}
	redemption.Status = model.StatusPending
	redemption.CreatedAt = time.Now()
	redemption.UpdatedAt = redemption.CreatedAt

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE tally.balances
		SET available_points = available_points - $2, redeemed_points = redeemed_points + $2, updated_at = NOW()
		WHERE user_id = $1 AND available_points >= $2
	`, redemption.UserID, redemption.PointsCost)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit balance", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Insufficient available points", fmt.Sprintf("user '%s' cannot cover %d points", redemption.UserID, redemption.PointsCost))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tally.redemptions (redemption_id, user_id, reward_code, points_cost, status, reason, updated_by, created_at, updated_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, redemption.RedemptionID, redemption.UserID, redemption.RewardCode, redemption.PointsCost, redemption.Status, redemption.Reason, redemption.UpdatedBy, redemption.CreatedAt, redemption.UpdatedAt, metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Redemption with this ID already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record redemption", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	_ = d.Cache.Delete(ctx, "balance:"+redemption.UserID)
	return redemption, nil
}

func (d Datasource) GetRedemption(ctx context.Context, id string) (*model.Redemption, error) {
	ctx, span := otel.Tracer("redemption.database").Start(ctx, "Getting redemption from db")
	defer span.End()

	var cached model.Redemption
	err := d.Cache.Get(ctx, "redemption:"+id, &cached)
	if err == nil && cached.RedemptionID != "" {
		return &cached, nil
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, redemption_id, user_id, reward_code, points_cost, status, COALESCE(reason, ''), COALESCE(updated_by, ''), created_at, updated_at, meta_data
		FROM tally.redemptions
		WHERE redemption_id = $1
	`, id)

	redemption := &model.Redemption{}
	var metaDataJSON []byte
	err = row.Scan(&redemption.ID, &redemption.RedemptionID, &redemption.UserID, &redemption.RewardCode, &redemption.PointsCost, &redemption.Status, &redemption.Reason, &redemption.UpdatedBy, &redemption.CreatedAt, &redemption.UpdatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Redemption with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve redemption", err)
	}

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &redemption.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	_ = d.Cache.Set(ctx, "redemption:"+id, redemption, redemptionCacheTTL)
	return redemption, nil
}

// GetRedemptionsPaginated lists redemptions newest first, optionally filtered
// by status. The returned token resumes the listing after the last row; an
// empty token means the listing is exhausted.
func (d Datasource) GetRedemptionsPaginated(ctx context.Context, status string, limit int, nextToken string) ([]*model.Redemption, string, error) {
	ctx, span := otel.Tracer("redemption.database").Start(ctx, "Fetching redemptions with pagination")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	var lastID int64
	if nextToken != "" {
		var err error
		lastID, err = decodeCursor(nextToken)
		if err != nil {
			return nil, "", apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid continuation token", err)
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, redemption_id, user_id, reward_code, points_cost, status, COALESCE(reason, ''), COALESCE(updated_by, ''), created_at, updated_at, meta_data
		FROM tally.redemptions
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`, status, lastID, limit)
	if err != nil {
		return nil, "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve redemptions", err)
	}
	defer rows.Close()

	redemptions := []*model.Redemption{}
	for rows.Next() {
		redemption := &model.Redemption{}
		var metaDataJSON []byte
		err = rows.Scan(&redemption.ID, &redemption.RedemptionID, &redemption.UserID, &redemption.RewardCode, &redemption.PointsCost, &redemption.Status, &redemption.Reason, &redemption.UpdatedBy, &redemption.CreatedAt, &redemption.UpdatedAt, &metaDataJSON)
		if err != nil {
			return nil, "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan redemption data", err)
		}
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &redemption.MetaData); err != nil {
				return nil, "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		redemptions = append(redemptions, redemption)
	}
	if err = rows.Err(); err != nil {
		return nil, "", apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over redemptions", err)
	}

	token := ""
	if len(redemptions) == limit {
		token = encodeCursor(redemptions[len(redemptions)-1].ID)
	}
	return redemptions, token, nil
}

// FinalizeRedemption moves a PENDING redemption to a terminal status and
// applies the matching side effects, all inside one transaction:
//
//   - the status flip is a compare-and-swap on status = PENDING, so of any
//     number of concurrent finalizers exactly one wins;
//   - APPROVED records a REDEEM ledger entry for the spent points;
//   - REJECTED records a REDEEM_REFUND entry and returns the points to the
//     user's available balance, flooring redeemed points at zero; a user
//     with no balance row fails with NOT_FOUND and rolls everything back.
//
// The ledger inserts land on a unique (reference_redemption_id, entry_type)
// index with ON CONFLICT DO NOTHING, so even a replayed transaction cannot
// duplicate an entry. A false result means the CAS lost and nothing was
// written.
func (d Datasource) FinalizeRedemption(ctx context.Context, redemption *model.Redemption, status, reason, actor string) (bool, error) {
	ctx, span := otel.Tracer("redemption.database").Start(ctx, "Finalizing redemption")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	result, err := tx.ExecContext(ctx, `
		UPDATE tally.redemptions
		SET status = $2, reason = $3, updated_by = $4, updated_at = NOW()
		WHERE redemption_id = $1 AND status = $5
	`, redemption.RedemptionID, status, reason, actor, model.StatusPending)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update redemption status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		// Lost the race: another caller already finalized this redemption.
		// Drop the stale cached copy so the caller re-reads the winner's
		// status.
		_ = d.Cache.Delete(ctx, "redemption:"+redemption.RedemptionID)
		return false, nil
	}

	switch status {
	case model.StatusApproved:
		// The points moved to redeemed when the redemption was requested;
		// approval only records the spend.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tally.reward_ledger (entry_id, user_id, entry_type, points, source, reference_redemption_id, reference_reward_code, note, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (reference_redemption_id, entry_type) WHERE reference_redemption_id IS NOT NULL DO NOTHING
		`, model.GenerateUUIDWithSuffix("lde"), redemption.UserID, model.EntryTypeRedeem, -redemption.PointsCost, model.SourceRewardRedeem, redemption.RedemptionID, redemption.RewardCode, reason, actor)
		if err != nil {
			return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record ledger entry", err)
		}
	case model.StatusRejected:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tally.reward_ledger (entry_id, user_id, entry_type, points, source, reference_redemption_id, reference_reward_code, note, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (reference_redemption_id, entry_type) WHERE reference_redemption_id IS NOT NULL DO NOTHING
		`, model.GenerateUUIDWithSuffix("lde"), redemption.UserID, model.EntryTypeRedeemRefund, redemption.PointsCost, model.SourceRewardRedeemRefund, redemption.RedemptionID, redemption.RewardCode, reason, actor)
		if err != nil {
			return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record refund ledger entry", err)
		}

		// The refund lands on the user's existing balance row; a missing row
		// is a data fault, never an implicit create.
		refund, err := tx.ExecContext(ctx, `
			UPDATE tally.balances
			SET available_points = available_points + $2,
			    redeemed_points = GREATEST(redeemed_points - $2, 0),
			    updated_at = NOW()
			WHERE user_id = $1
		`, redemption.UserID, redemption.PointsCost)
		if err != nil {
			return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to refund balance", err)
		}
		refunded, err := refund.RowsAffected()
		if err != nil {
			return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
		}
		if refunded == 0 {
			return false, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Balance for user '%s' not found", redemption.UserID), nil)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	_ = d.Cache.Delete(ctx, "redemption:"+redemption.RedemptionID)
	_ = d.Cache.Delete(ctx, "balance:"+redemption.UserID)
	return true, nil
}
