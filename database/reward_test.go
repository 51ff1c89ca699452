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
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/tallyhq/tally/internal/apierror"
	"github.com/tallyhq/tally/model"
)

func TestCreateReward_Success(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	reward := model.Reward{
		Code:       "GIFT50",
		Name:       "50 USD Gift Card",
		PointsCost: 500,
		MetaData:   map[string]interface{}{"vendor": "acme"},
	}

	metaDataJSON, err := json.Marshal(reward.MetaData)
	assert.NoError(t, err)

	mock.ExpectExec("INSERT INTO tally.rewards").
		WithArgs(sqlmock.AnyArg(), "GIFT50", "50 USD Gift Card", "", int64(500), true, sqlmock.AnyArg(), sqlmock.AnyArg(), metaDataJSON).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := ds.CreateReward(context.Background(), reward)
	assert.NoError(t, err)
	assert.Contains(t, result.RewardID, "rwd_")
	assert.True(t, result.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReward_DuplicateCode(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectExec("INSERT INTO tally.rewards").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := ds.CreateReward(context.Background(), model.Reward{Code: "GIFT50", Name: "Gift Card", PointsCost: 500})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetRewardByID_Success(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	rows := sqlmock.NewRows([]string{"id", "reward_id", "code", "name", "description", "points_cost", "active", "created_at", "updated_at", "meta_data"}).
		AddRow(1, "rwd123", "GIFT50", "50 USD Gift Card", "", 500, true, time.Now(), time.Now(), nil)

	mock.ExpectQuery("SELECT id, reward_id, code, name").
		WithArgs("rwd123").
		WillReturnRows(rows)

	reward, err := ds.GetRewardByID(context.Background(), "rwd123")
	assert.NoError(t, err)
	assert.Equal(t, "GIFT50", reward.Code)
	assert.Equal(t, int64(500), reward.PointsCost)
}

func TestGetRewardByCode_NotFound(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectQuery("SELECT id, reward_id, code, name").
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := ds.GetRewardByCode(context.Background(), "NOPE")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetAllRewards_Success(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	rows := sqlmock.NewRows([]string{"id", "reward_id", "code", "name", "description", "points_cost", "active", "created_at", "updated_at", "meta_data"}).
		AddRow(2, "rwd2", "MUG", "Coffee Mug", "", 100, true, time.Now(), time.Now(), nil).
		AddRow(1, "rwd1", "GIFT50", "50 USD Gift Card", "", 500, false, time.Now(), time.Now(), nil)

	mock.ExpectQuery("SELECT id, reward_id, code, name").
		WithArgs(20, 0).
		WillReturnRows(rows)

	rewards, err := ds.GetAllRewards(context.Background(), 0, 0)
	assert.NoError(t, err)
	assert.Len(t, rewards, 2)
	assert.Equal(t, "MUG", rewards[0].Code)
	assert.False(t, rewards[1].Active)
}

func TestUpdateReward_NotFound(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectExec("UPDATE tally.rewards").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := ds.UpdateReward(context.Background(), &model.Reward{RewardID: "rwd404", Name: "Gone", PointsCost: 1})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestDeactivateReward_Success(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectExec("UPDATE tally.rewards").
		WithArgs("rwd123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := ds.DeactivateReward(context.Background(), "rwd123")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
