package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tallyhq/tally/internal/apierror"
	"github.com/tallyhq/tally/model"
)

func (d Datasource) CreateReward(ctx context.Context, reward model.Reward) (model.Reward, error) {
	metaDataJSON, err := json.Marshal(reward.MetaData)
	if err != nil {
		return model.Reward{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	reward.RewardID = model.GenerateUUIDWithSuffix("rwd")
	reward.Active = true
	reward.CreatedAt = time.Now()
	reward.UpdatedAt = reward.CreatedAt

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO tally.rewards (reward_id, code, name, description, points_cost, active, created_at, updated_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, reward.RewardID, reward.Code, reward.Name, reward.Description, reward.PointsCost, reward.Active, reward.CreatedAt, reward.UpdatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Reward{}, apierror.NewAPIError(apierror.ErrConflict, "Reward with this code already exists", err)
			default:
				return model.Reward{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Reward{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create reward", err)
	}

	return reward, nil
}

func (d Datasource) GetRewardByID(ctx context.Context, id string) (*model.Reward, error) {
	return d.getReward(ctx, "reward_id", id)
}

func (d Datasource) GetRewardByCode(ctx context.Context, code string) (*model.Reward, error) {
	return d.getReward(ctx, "code", code)
}

func (d Datasource) getReward(ctx context.Context, column, value string) (*model.Reward, error) {
	reward := model.Reward{}

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, reward_id, code, name, COALESCE(description, ''), points_cost, active, created_at, updated_at, meta_data
		FROM tally.rewards
		WHERE %s = $1
	`, column), value)

	var metaDataJSON []byte
	err := row.Scan(&reward.ID, &reward.RewardID, &reward.Code, &reward.Name, &reward.Description, &reward.PointsCost, &reward.Active, &reward.CreatedAt, &reward.UpdatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Reward '%s' not found", value), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reward", err)
	}

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &reward.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	return &reward, nil
}

func (d Datasource) GetAllRewards(ctx context.Context, limit, offset int) ([]model.Reward, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, reward_id, code, name, COALESCE(description, ''), points_cost, active, created_at, updated_at, meta_data
		FROM tally.rewards
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve rewards", err)
	}
	defer rows.Close()

	rewards := []model.Reward{}
	for rows.Next() {
		reward := model.Reward{}
		var metaDataJSON []byte
		err = rows.Scan(&reward.ID, &reward.RewardID, &reward.Code, &reward.Name, &reward.Description, &reward.PointsCost, &reward.Active, &reward.CreatedAt, &reward.UpdatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan reward data", err)
		}
		if len(metaDataJSON) > 0 {
			if err := json.Unmarshal(metaDataJSON, &reward.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		rewards = append(rewards, reward)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over rewards", err)
	}

	return rewards, nil
}

func (d Datasource) UpdateReward(ctx context.Context, reward *model.Reward) error {
	metaDataJSON, err := json.Marshal(reward.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.rewards
		SET name = $2, description = $3, points_cost = $4, active = $5, updated_at = NOW(), meta_data = $6
		WHERE reward_id = $1
	`, reward.RewardID, reward.Name, reward.Description, reward.PointsCost, reward.Active, metaDataJSON)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update reward", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Reward with ID '%s' not found", reward.RewardID), nil)
	}

	return nil
}

// DeactivateReward retires a catalog entry without deleting it, so existing
// redemptions keep a valid reward code to reference.
func (d Datasource) DeactivateReward(ctx context.Context, id string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.rewards
		SET active = false, updated_at = NOW()
		WHERE reward_id = $1
	`, id)

	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to deactivate reward", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Reward with ID '%s' not found", id), nil)
	}

	return nil
}
