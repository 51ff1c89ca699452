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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/tallyhq/tally/internal/apierror"
	"github.com/tallyhq/tally/model"
)

func TestCreateBalance_Success(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	balance := model.Balance{
		UserID:          "user123",
		AvailablePoints: 1000,
	}

	mock.ExpectQuery("INSERT INTO tally.balances").
		WithArgs("user123", int64(1000), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	result, err := ds.CreateBalance(context.Background(), balance)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.ID)
	assert.Equal(t, int64(1000), result.AvailablePoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBalance_NegativePoints(t *testing.T) {
	ds, _, closeDB := newTestDatasource(t)
	defer closeDB()

	_, err := ds.CreateBalance(context.Background(), model.Balance{UserID: "user123", AvailablePoints: -5})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestCreateBalance_Duplicate(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectQuery("INSERT INTO tally.balances").
		WithArgs("user123", int64(1000), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := ds.CreateBalance(context.Background(), model.Balance{UserID: "user123", AvailablePoints: 1000})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetBalanceByUserID_Success(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	rows := sqlmock.NewRows([]string{"id", "user_id", "available_points", "redeemed_points", "created_at", "updated_at"}).
		AddRow(1, "user123", 1000, 500, time.Now(), time.Now())

	mock.ExpectQuery("SELECT id, user_id, available_points, redeemed_points").
		WithArgs("user123").
		WillReturnRows(rows)

	balance, err := ds.GetBalanceByUserID(context.Background(), "user123")
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), balance.AvailablePoints)
	assert.Equal(t, int64(500), balance.RedeemedPoints)
}

func TestGetBalanceByUserID_NotFound(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectQuery("SELECT id, user_id, available_points, redeemed_points").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := ds.GetBalanceByUserID(context.Background(), "ghost")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestAdjustBalance_Success(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tally.balances").
		WithArgs("user123", int64(250)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tally.reward_ledger").
		WithArgs(sqlmock.AnyArg(), "user123", model.EntryTypeAdjustment, int64(250), model.SourceAdminAdjustment, "quarterly bonus", "admin@tally").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, user_id, available_points, redeemed_points").
		WithArgs("user123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "available_points", "redeemed_points", "created_at", "updated_at"}).
			AddRow(1, "user123", 1250, 0, time.Now(), time.Now()))
	mock.ExpectCommit()

	balance, err := ds.AdjustBalance(context.Background(), "user123", 250, "quarterly bonus", "admin@tally")
	assert.NoError(t, err)
	assert.Equal(t, int64(1250), balance.AvailablePoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalance_Overdraw(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tally.balances").
		WithArgs("user123", int64(-5000)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := ds.AdjustBalance(context.Background(), "user123", -5000, "clawback", "admin@tally")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalance_UserNotFound(t *testing.T) {
	ds, mock, closeDB := newTestDatasource(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tally.balances").
		WithArgs("ghost", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := ds.AdjustBalance(context.Background(), "ghost", 100, "bonus", "admin@tally")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}
