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

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	model2 "github.com/tallyhq/tally/api/model"
	"github.com/tallyhq/tally/model"
)

func expectRewardLookup(mock sqlmock.Sqlmock, code string, pointsCost int64, active bool) {
	rows := sqlmock.NewRows([]string{"id", "reward_id", "code", "name", "description", "points_cost", "active", "created_at", "updated_at", "meta_data"}).
		AddRow(1, "rwd123", code, "Test Reward", "", pointsCost, active, time.Now(), time.Now(), nil)
	mock.ExpectQuery("SELECT id, reward_id, code, name").
		WithArgs(code).
		WillReturnRows(rows)
}

func expectRedemptionLookup(mock sqlmock.Sqlmock, id, userID, status string, pointsCost int64) {
	rows := sqlmock.NewRows([]string{"id", "redemption_id", "user_id", "reward_code", "points_cost", "status", "reason", "updated_by", "created_at", "updated_at", "meta_data"}).
		AddRow(1, id, userID, "GIFT50", pointsCost, status, "", "", time.Now(), time.Now(), nil)
	mock.ExpectQuery("SELECT id, redemption_id, user_id, reward_code, points_cost, status").
		WithArgs(id).
		WillReturnRows(rows)
}

func TestCreateRedemptionAPI(t *testing.T) {
	router, mock := setupRouter(t)

	expectRewardLookup(mock, "GIFT50", 500, true)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tally.balances").
		WithArgs("user123", int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tally.redemptions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var response model.Redemption
	payload := model2.CreateRedemption{UserID: "user123", RewardCode: "GIFT50"}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  toJSON(t, payload),
		Response: &response,
		Router:   router,
		Method:   "POST",
		Route:    "/redemptions",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, model.StatusPending, response.Status)
	assert.Contains(t, response.RedemptionID, "rdm_")
}

func TestCreateRedemptionAPI_InsufficientPoints(t *testing.T) {
	router, mock := setupRouter(t)

	expectRewardLookup(mock, "GIFT50", 500, true)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tally.balances").
		WithArgs("user123", int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	payload := model2.CreateRedemption{UserID: "user123", RewardCode: "GIFT50"}
	resp, err := SetUpTestRequest(TestRequest{
		Payload: toJSON(t, payload),
		Router:  router,
		Method:  "POST",
		Route:   "/redemptions",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateRedemptionAPI_MissingUserID(t *testing.T) {
	router, _ := setupRouter(t)

	payload := model2.CreateRedemption{RewardCode: "GIFT50"}
	resp, err := SetUpTestRequest(TestRequest{
		Payload: toJSON(t, payload),
		Router:  router,
		Method:  "POST",
		Route:   "/redemptions",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpdateRedemptionStatusAPI_Approve(t *testing.T) {
	router, mock := setupRouter(t)

	expectRedemptionLookup(mock, "rdm123", "user123", model.StatusPending, 500)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tally.redemptions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tally.reward_ledger").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	expectRedemptionLookup(mock, "rdm123", "user123", model.StatusApproved, 500)

	var response model.Redemption
	payload := model2.UpdateRedemptionStatus{Status: "approved", Reason: "looks good", UpdatedBy: "admin@tally"}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  toJSON(t, payload),
		Response: &response,
		Router:   router,
		Method:   "PUT",
		Route:    "/redemptions/rdm123/status",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, model.StatusApproved, response.Status)
}

func TestUpdateRedemptionStatusAPI_SettledIsRefused(t *testing.T) {
	router, mock := setupRouter(t)

	expectRedemptionLookup(mock, "rdm123", "user123", model.StatusRejected, 500)

	var response model.Redemption
	payload := model2.UpdateRedemptionStatus{Status: "APPROVED", UpdatedBy: "admin@tally"}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  toJSON(t, payload),
		Response: &response,
		Router:   router,
		Method:   "PUT",
		Route:    "/redemptions/rdm123/status",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, model.StatusRejected, response.Status)
}

func TestGetRedemptionAPI(t *testing.T) {
	router, mock := setupRouter(t)

	expectRedemptionLookup(mock, "rdm123", "user123", model.StatusPending, 500)

	var response model.Redemption
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Router:   router,
		Method:   "GET",
		Route:    "/redemptions/rdm123",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "rdm123", response.RedemptionID)
}

func TestGetAllRedemptionsAPI(t *testing.T) {
	router, mock := setupRouter(t)

	rows := sqlmock.NewRows([]string{"id", "redemption_id", "user_id", "reward_code", "points_cost", "status", "reason", "updated_by", "created_at", "updated_at", "meta_data"}).
		AddRow(2, "rdm2", "user1", "GIFT50", 500, model.StatusPending, "", "", time.Now(), time.Now(), nil).
		AddRow(1, "rdm1", "user2", "GIFT50", 500, model.StatusPending, "", "", time.Now(), time.Now(), nil)

	mock.ExpectQuery("SELECT id, redemption_id, user_id, reward_code, points_cost, status").
		WithArgs(model.StatusPending, int64(0), 2).
		WillReturnRows(rows)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Router:   router,
		Method:   "GET",
		Route:    "/redemptions?status=pending&limit=2",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, response["redemptions"], 2)
	assert.NotEmpty(t, response["next_token"])
}

func TestGetRedemptionLedgerAPI(t *testing.T) {
	router, mock := setupRouter(t)

	rows := sqlmock.NewRows([]string{"entry_id", "user_id", "entry_type", "points", "source", "reference_redemption_id", "reference_reward_code", "note", "created_by", "created_at"}).
		AddRow("lde1", "user123", model.EntryTypeRedeem, -500, model.SourceRewardRedeem, "rdm123", "GIFT50", "", "admin@tally", time.Now())

	mock.ExpectQuery("SELECT entry_id, user_id, entry_type, points").
		WithArgs("rdm123").
		WillReturnRows(rows)

	var response []model.LedgerEntry
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Router:   router,
		Method:   "GET",
		Route:    "/redemptions/rdm123/ledger",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, response, 1)
	assert.Equal(t, model.EntryTypeRedeem, response[0].EntryType)
}
