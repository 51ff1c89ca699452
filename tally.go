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
	"embed"

	"github.com/typesense/typesense-go/typesense/api"

	"github.com/redis/go-redis/v9"
	"github.com/tallyhq/tally/config"
	"github.com/tallyhq/tally/database"
	redis_db "github.com/tallyhq/tally/internal/redis-db"
	"github.com/tallyhq/tally/internal/search"
)

// Tally represents the main struct for the Tally application.
type Tally struct {
	queue      *Queue
	search     *search.TypesenseClient
	redis      redis.UniversalClient
	datasource database.IDataSource
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewTally initializes a new instance of Tally with the provided database datasource.
// It fetches the configuration and initializes the Redis client, queue, and search client.
func NewTally(db database.IDataSource) (*Tally, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	searchKey := configuration.TypeSenseKey
	if searchKey == "" {
		searchKey = "tally-api-key"
	}
	newSearch := search.NewTypesenseClient(searchKey, []string{configuration.TypeSense.Dns})
	newTally := &Tally{datasource: db, queue: newQueue, redis: redisClient.Client(), search: newSearch}
	return newTally, nil
}

// GetSearchClient returns the TypeSense client used for indexing and search.
func (l *Tally) GetSearchClient() *search.TypesenseClient {
	return l.search
}

// GetDataSource returns the underlying datasource.
func (l *Tally) GetDataSource() database.IDataSource {
	return l.datasource
}

// Search performs a search on the specified collection using the provided query parameters.
func (l *Tally) Search(collection string, query *api.SearchCollectionParams) (interface{}, error) {
	return l.search.Search(context.Background(), collection, query)
}

// MultiSearch performs a multi-search operation across collections.
func (l *Tally) MultiSearch(searchParams *api.MultiSearchSearchesParameter) (*api.MultiSearchResult, error) {
	return l.search.MultiSearch(context.Background(), *searchParams)
}
