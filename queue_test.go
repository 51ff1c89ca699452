package tally

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/tallyhq/tally/config"
	"github.com/tallyhq/tally/model"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	cnf := &config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{
			WebhookQueue:    "new:webhook",
			IndexQueue:      "new:index",
			RedemptionQueue: "new:redemption",
			NumberOfQueues:  4,
		},
	}
	config.MockConfig(cnf)

	return NewQueue(cnf), mr
}

func TestEnqueueRedemption(t *testing.T) {
	q, mr := newTestQueue(t)

	redemption := &model.Redemption{
		RedemptionID: "rdm123",
		UserID:       "user123",
		RewardCode:   "GIFT50",
		PointsCost:   500,
		Status:       model.StatusPending,
	}

	err := q.Enqueue(context.Background(), redemption)
	assert.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())
}

func TestEnqueueSameUserSameQueue(t *testing.T) {
	q, _ := newTestQueue(t)

	first := &model.Redemption{RedemptionID: "rdm1", UserID: "user123", RewardCode: "GIFT50", PointsCost: 500}
	second := &model.Redemption{RedemptionID: "rdm2", UserID: "user123", RewardCode: "MUG", PointsCost: 100}

	firstTask := q.geTask(first, mustJSON(t, first))
	secondTask := q.geTask(second, mustJSON(t, second))

	// Redemptions for one user land on one queue so they apply in order.
	assert.Equal(t, firstTask.Type(), secondTask.Type())
}

func TestGetRedemptionFromQueue(t *testing.T) {
	q, _ := newTestQueue(t)

	redemption := &model.Redemption{
		RedemptionID: "rdm123",
		UserID:       "user123",
		RewardCode:   "GIFT50",
		PointsCost:   500,
	}

	err := q.Enqueue(context.Background(), redemption)
	assert.NoError(t, err)

	queued, err := q.GetRedemptionFromQueue("rdm123")
	assert.NoError(t, err)
	if queued != nil {
		assert.Equal(t, "rdm123", queued.RedemptionID)
		assert.Equal(t, "user123", queued.UserID)
	}
}

func mustJSON(t *testing.T, redemption *model.Redemption) []byte {
	t.Helper()
	data, err := redemption.ToJSON()
	assert.NoError(t, err)
	return data
}
