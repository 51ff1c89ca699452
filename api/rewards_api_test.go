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
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/tallyhq/tally"
	model2 "github.com/tallyhq/tally/api/model"
	"github.com/tallyhq/tally/config"
	"github.com/tallyhq/tally/database"
	"github.com/tallyhq/tally/internal/cache"
	"github.com/tallyhq/tally/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		if err := json.NewDecoder(resp.Body).Decode(&s.Response); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{
			WebhookQueue:    "new:webhook",
			IndexQueue:      "new:index",
			RedemptionQueue: "new:redemption",
			NumberOfQueues:  1,
		},
	})

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	newCache, err := cache.NewCache()
	if err != nil {
		t.Fatalf("an error '%s' was not expected", err)
	}

	newTally, err := tally.NewTally(&database.Datasource{Conn: db, Cache: newCache})
	if err != nil {
		t.Fatalf("Error creating Tally instance: %s", err)
	}

	return NewAPI(newTally).Router(), mock
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	assert.NoError(t, err)
	return bytes.NewBuffer(data)
}

func TestCreateRewardAPI(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectExec("INSERT INTO tally.rewards").
		WillReturnResult(sqlmock.NewResult(1, 1))

	var response model.Reward
	payload := model2.CreateReward{Code: "GIFT50", Name: "50 USD Gift Card", PointsCost: 500}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  toJSON(t, payload),
		Response: &response,
		Router:   router,
		Method:   "POST",
		Route:    "/rewards",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "GIFT50", response.Code)
	assert.NotEmpty(t, response.RewardID)
}

func errNoRows() error {
	return sql.ErrNoRows
}

func TestCreateRewardAPI_MissingFields(t *testing.T) {
	router, _ := setupRouter(t)

	payload := model2.CreateReward{Name: "No Code"}
	resp, err := SetUpTestRequest(TestRequest{
		Payload: toJSON(t, payload),
		Router:  router,
		Method:  "POST",
		Route:   "/rewards",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetRewardAPI_NotFound(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectQuery("SELECT id, reward_id, code, name").
		WithArgs("rwd404").
		WillReturnError(errNoRows())

	resp, err := SetUpTestRequest(TestRequest{
		Router: router,
		Method: "GET",
		Route:  "/rewards/rwd404",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetAllRewardsAPI(t *testing.T) {
	router, mock := setupRouter(t)

	rows := sqlmock.NewRows([]string{"id", "reward_id", "code", "name", "description", "points_cost", "active", "created_at", "updated_at", "meta_data"}).
		AddRow(1, "rwd1", "GIFT50", "50 USD Gift Card", "", 500, true, time.Now(), time.Now(), nil)

	mock.ExpectQuery("SELECT id, reward_id, code, name").
		WithArgs(20, 0).
		WillReturnRows(rows)

	var response []model.Reward
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Router:   router,
		Method:   "GET",
		Route:    "/rewards",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, response, 1)
}

func TestDeactivateRewardAPI(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectExec("UPDATE tally.rewards").
		WithArgs("rwd123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows := sqlmock.NewRows([]string{"id", "reward_id", "code", "name", "description", "points_cost", "active", "created_at", "updated_at", "meta_data"}).
		AddRow(1, "rwd123", "GIFT50", "50 USD Gift Card", "", 500, false, time.Now(), time.Now(), nil)
	mock.ExpectQuery("SELECT id, reward_id, code, name").
		WithArgs("rwd123").
		WillReturnRows(rows)

	var response model.Reward
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Router:   router,
		Method:   "DELETE",
		Route:    "/rewards/rwd123",
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, response.Active)
}
