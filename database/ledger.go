package database

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/tallyhq/tally/internal/apierror"
	"github.com/tallyhq/tally/model"
)

// Ledger entries are only ever written inside the transactions that move
// points (FinalizeRedemption, AdjustBalance); this file covers the reads.

func (d Datasource) GetLedgerEntries(ctx context.Context, userID string, limit, offset int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT entry_id, user_id, entry_type, points, COALESCE(source, ''), COALESCE(reference_redemption_id, ''), COALESCE(reference_reward_code, ''), COALESCE(note, ''), COALESCE(created_by, ''), created_at
		FROM tally.reward_ledger
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logrus.Error(err)
		}
	}(rows)

	entries := []model.LedgerEntry{}
	for rows.Next() {
		entry := model.LedgerEntry{}
		err = rows.Scan(&entry.EntryID, &entry.UserID, &entry.EntryType, &entry.Points, &entry.Source, &entry.ReferenceRedemptionID, &entry.ReferenceRewardCode, &entry.Note, &entry.CreatedBy, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry data", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ledger entries", err)
	}

	return entries, nil
}

// GetAllLedgerEntries walks the whole ledger oldest first. It backs the
// search reindexer; user-facing reads go through GetLedgerEntries.
func (d Datasource) GetAllLedgerEntries(ctx context.Context, limit, offset int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT entry_id, user_id, entry_type, points, COALESCE(source, ''), COALESCE(reference_redemption_id, ''), COALESCE(reference_reward_code, ''), COALESCE(note, ''), COALESCE(created_by, ''), created_at
		FROM tally.reward_ledger
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		entry := model.LedgerEntry{}
		err = rows.Scan(&entry.EntryID, &entry.UserID, &entry.EntryType, &entry.Points, &entry.Source, &entry.ReferenceRedemptionID, &entry.ReferenceRewardCode, &entry.Note, &entry.CreatedBy, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry data", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ledger entries", err)
	}

	return entries, nil
}

func (d Datasource) GetLedgerEntriesByRedemption(ctx context.Context, redemptionID string) ([]model.LedgerEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT entry_id, user_id, entry_type, points, COALESCE(source, ''), COALESCE(reference_redemption_id, ''), COALESCE(reference_reward_code, ''), COALESCE(note, ''), COALESCE(created_by, ''), created_at
		FROM tally.reward_ledger
		WHERE reference_redemption_id = $1
		ORDER BY id ASC
	`, redemptionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		entry := model.LedgerEntry{}
		err = rows.Scan(&entry.EntryID, &entry.UserID, &entry.EntryType, &entry.Points, &entry.Source, &entry.ReferenceRedemptionID, &entry.ReferenceRewardCode, &entry.Note, &entry.CreatedBy, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry data", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ledger entries", err)
	}

	return entries, nil
}
