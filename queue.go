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
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/tallyhq/tally/config"
	redis_db "github.com/tallyhq/tally/internal/redis-db"

	"github.com/hibiken/asynq"
	"github.com/tallyhq/tally/model"
)

// Queue represents a queue for handling various tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueIndexData enqueues a task to index data in a specified collection.
func (q *Queue) queueIndexData(id string, collection string, data interface{}) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	if cfg.TypeSense.Dns == "" {
		return nil
	}

	payload := map[string]interface{}{
		"collection": collection,
		"payload":    data,
	}

	IPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskOptions := []asynq.Option{asynq.Queue(cfg.Queue.IndexQueue)}
	task := asynq.NewTask(cfg.Queue.IndexQueue, IPayload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued index data: %+v", id)
	return nil
}

// Enqueue enqueues a redemption to the Redis queue.
//
// Redemptions are sharded across queues by user ID so all redemptions for
// the same user are processed serially within the same queue. This keeps
// concurrent requests from racing each other on the user's balance.
func (q *Queue) Enqueue(ctx context.Context, redemption *model.Redemption) error {
	ctx, span := tracer.Start(ctx, "Adding Redemption To Redis Queue")
	defer span.End()

	payload, err := json.Marshal(redemption)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, q.geTask(redemption, payload), asynq.MaxRetry(5))
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued redemption: %+v", redemption.RedemptionID)

	return nil
}

// geTask generates a task for a redemption and assigns it to a specific queue based on the user ID.
func (q *Queue) geTask(redemption *model.Redemption, payload []byte) *asynq.Task {
	cnf, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config: %v", err)
		return nil
	}
	queueIndex := hashUserID(redemption.UserID) % cnf.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cnf.Queue.RedemptionQueue, queueIndex+1)

	taskOptions := []asynq.Option{asynq.TaskID(redemption.RedemptionID), asynq.Queue(queueName)}

	return asynq.NewTask(queueName, payload, taskOptions...)
}

// hashUserID returns a consistent hash value for a string user ID.
func hashUserID(userID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(userID))
	return int(hasher.Sum32())
}

// GetRedemptionFromQueue retrieves a queued redemption by its ID, or nil if
// it is not waiting in any queue.
func (q *Queue) GetRedemptionFromQueue(redemptionID string) (*model.Redemption, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.RedemptionQueue, i)
		task, err := q.Inspector.GetTaskInfo(queueName, redemptionID)
		if err == nil && task != nil {
			var redemption model.Redemption
			if err := json.Unmarshal(task.Payload, &redemption); err != nil {
				return nil, err
			}
			return &redemption, nil
		}
	}
	return nil, nil
}
