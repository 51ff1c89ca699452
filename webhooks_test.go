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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/tallyhq/tally/config"
	"github.com/tallyhq/tally/model"
)

func TestSendWebhook(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	mockConfig := &config.Configuration{
		Redis: config.RedisConfig{
			Dns: mr.Addr(),
		},
		Notification: config.Notification{Webhook: struct {
			Url     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		}(struct {
			Url     string
			Headers map[string]string
		}{Url: "https:localhost:5001/webhook", Headers: nil})},
	}

	config.ConfigStore.Store(mockConfig)
	testData := NewWebhook{
		Event: "redemption.pending",
		Payload: model.Redemption{
			RedemptionID: "rdm123",
			UserID:       "user123",
			RewardCode:   "GIFT50",
			PointsCost:   500,
			Status:       model.StatusPending,
		},
	}

	err = SendWebhook(testData)
	assert.NoError(t, err)

	// Verify that the task was enqueued
	tasks := mr.Keys()
	t.Log(tasks)
	assert.NotEmpty(t, tasks)
}

func TestSendWebhook_NoURLConfigured(t *testing.T) {
	config.MockConfig(&config.Configuration{})

	err := SendWebhook(NewWebhook{Event: "redemption.pending"})
	assert.NoError(t, err)
}

func TestGetEventFromStatus(t *testing.T) {
	assert.Equal(t, "redemption.pending", getEventFromStatus(model.StatusPending))
	assert.Equal(t, "redemption.approved", getEventFromStatus(model.StatusApproved))
	assert.Equal(t, "redemption.rejected", getEventFromStatus(model.StatusRejected))
	assert.Equal(t, "redemption.unknown", getEventFromStatus("SHIPPED"))
}
