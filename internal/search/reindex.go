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

package search

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tallyhq/tally/database"
)

// ReindexProgress tracks the progress of a reindex operation.
type ReindexProgress struct {
	Status           string     `json:"status"` // "pending", "in_progress", "completed", "failed"
	Phase            string     `json:"phase"`  // "drop_collections", "indexing_rewards", etc.
	TotalRecords     int64      `json:"total_records"`
	ProcessedRecords int64      `json:"processed_records"`
	Errors           []string   `json:"errors,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// ReindexConfig holds configuration for reindexing.
type ReindexConfig struct {
	BatchSize int
}

// ReindexService rebuilds the TypeSense collections from the database.
type ReindexService struct {
	client     *TypesenseClient
	datasource database.IDataSource
	config     ReindexConfig
	progress   *ReindexProgress
	mu         sync.RWMutex
}

// NewReindexService creates a new ReindexService instance.
func NewReindexService(client *TypesenseClient, datasource database.IDataSource, config ReindexConfig) *ReindexService {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	return &ReindexService{
		client:     client,
		datasource: datasource,
		config:     config,
		progress: &ReindexProgress{
			Status: "pending",
		},
	}
}

// GetProgress returns the current progress of the reindex operation.
func (r *ReindexService) GetProgress() ReindexProgress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *r.progress
}

func (r *ReindexService) updateProgress(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.Phase = phase
}

func (r *ReindexService) addProcessed(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.ProcessedRecords += n
	r.progress.TotalRecords = r.progress.ProcessedRecords
}

func (r *ReindexService) addError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.Errors = append(r.progress.Errors, err)
}

// StartReindex performs a complete reindex of all data. It drops all
// collections, recreates them, and indexes data in order:
// rewards -> redemptions -> ledger entries
func (r *ReindexService) StartReindex(ctx context.Context) (*ReindexProgress, error) {
	r.mu.Lock()
	r.progress = &ReindexProgress{
		Status:    "in_progress",
		Phase:     "starting",
		StartedAt: time.Now(),
	}
	r.mu.Unlock()

	logrus.Info("Starting reindex operation")

	if err := r.client.DropAllCollections(ctx); err != nil {
		return r.failWithError(err, "drop_collections")
	}
	r.updateProgress("create_collections")

	if err := r.client.EnsureCollectionsExist(ctx); err != nil {
		return r.failWithError(err, "create_collections")
	}

	if err := r.indexRewards(ctx); err != nil {
		return r.failWithError(err, "indexing_rewards")
	}

	if err := r.indexRedemptions(ctx); err != nil {
		return r.failWithError(err, "indexing_redemptions")
	}

	if err := r.indexLedgerEntries(ctx); err != nil {
		return r.failWithError(err, "indexing_ledger")
	}

	r.mu.Lock()
	now := time.Now()
	r.progress.Status = "completed"
	r.progress.Phase = "done"
	r.progress.CompletedAt = &now
	r.mu.Unlock()

	progress := r.GetProgress()
	logrus.WithFields(logrus.Fields{
		"total_records": progress.TotalRecords,
		"duration":      time.Since(progress.StartedAt).String(),
	}).Info("Reindex operation completed")

	return &progress, nil
}

func (r *ReindexService) failWithError(err error, phase string) (*ReindexProgress, error) {
	r.mu.Lock()
	now := time.Now()
	r.progress.Status = "failed"
	r.progress.Phase = phase
	r.progress.CompletedAt = &now
	r.progress.Errors = append(r.progress.Errors, err.Error())
	r.mu.Unlock()

	logrus.WithError(err).WithField("phase", phase).Error("Reindex operation failed")
	progress := r.GetProgress()
	return &progress, err
}

func (r *ReindexService) indexRewards(ctx context.Context) error {
	r.updateProgress("indexing_rewards")
	logrus.Info("Starting to index rewards")

	var offset int
	for {
		rewards, err := r.datasource.GetAllRewards(ctx, r.config.BatchSize, offset)
		if err != nil {
			return err
		}
		if len(rewards) == 0 {
			break
		}

		var indexed int64
		for _, reward := range rewards {
			data, err := toMap(reward)
			if err != nil {
				r.addError("reward " + reward.RewardID + ": " + err.Error())
				continue
			}
			if err := r.client.HandleNotification(ctx, CollectionRewards, data); err != nil {
				r.addError("reward " + reward.RewardID + ": " + err.Error())
				continue
			}
			indexed++
		}
		r.addProcessed(indexed)
		offset += len(rewards)
	}

	logrus.Info("Reward indexing completed")
	return nil
}

func (r *ReindexService) indexRedemptions(ctx context.Context) error {
	r.updateProgress("indexing_redemptions")
	logrus.Info("Starting to index redemptions")

	token := ""
	for {
		redemptions, nextToken, err := r.datasource.GetRedemptionsPaginated(ctx, "", r.config.BatchSize, token)
		if err != nil {
			return err
		}
		if len(redemptions) == 0 {
			break
		}

		var indexed int64
		for _, redemption := range redemptions {
			data, err := toMap(redemption)
			if err != nil {
				r.addError("redemption " + redemption.RedemptionID + ": " + err.Error())
				continue
			}
			if err := r.client.HandleNotification(ctx, CollectionRedemptions, data); err != nil {
				r.addError("redemption " + redemption.RedemptionID + ": " + err.Error())
				continue
			}
			indexed++
		}
		r.addProcessed(indexed)

		if nextToken == "" {
			break
		}
		token = nextToken
	}

	logrus.Info("Redemption indexing completed")
	return nil
}

func (r *ReindexService) indexLedgerEntries(ctx context.Context) error {
	r.updateProgress("indexing_ledger")
	logrus.Info("Starting to index ledger entries")

	var offset int
	for {
		entries, err := r.datasource.GetAllLedgerEntries(ctx, r.config.BatchSize, offset)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}

		var indexed int64
		for _, entry := range entries {
			data, err := toMap(entry)
			if err != nil {
				r.addError("ledger entry " + entry.EntryID + ": " + err.Error())
				continue
			}
			if err := r.client.HandleNotification(ctx, CollectionLedgerEntries, data); err != nil {
				r.addError("ledger entry " + entry.EntryID + ": " + err.Error())
				continue
			}
			indexed++
		}
		r.addProcessed(indexed)
		offset += len(entries)
	}

	logrus.Info("Ledger entry indexing completed")
	return nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// DropCollection deletes a collection from TypeSense. A missing collection
// is not an error.
func (t *TypesenseClient) DropCollection(ctx context.Context, collectionName string) error {
	_, err := t.Client.Collection(collectionName).Delete(ctx)
	if err != nil && !strings.Contains(err.Error(), "not found") && !strings.Contains(err.Error(), "Not Found") {
		return err
	}
	return nil
}

// DropAllCollections drops all known collections from TypeSense.
func (t *TypesenseClient) DropAllCollections(ctx context.Context) error {
	collections := []string{
		CollectionRewards,
		CollectionRedemptions,
		CollectionLedgerEntries,
	}

	for _, c := range collections {
		logrus.WithField("collection", c).Debug("Dropping collection")
		if err := t.DropCollection(ctx, c); err != nil {
			return err
		}
	}

	return nil
}
