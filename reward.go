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

	"github.com/tallyhq/tally/internal/apierror"
	"github.com/tallyhq/tally/internal/notification"
	"github.com/tallyhq/tally/internal/search"
	"github.com/tallyhq/tally/model"
)

func (l *Tally) postRewardActions(_ context.Context, reward *model.Reward) {
	go func() {
		err := l.queue.queueIndexData(reward.RewardID, search.CollectionRewards, reward)
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

// CreateReward adds a new entry to the reward catalog.
func (l *Tally) CreateReward(ctx context.Context, reward model.Reward) (model.Reward, error) {
	if err := reward.Validate(); err != nil {
		return model.Reward{}, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	reward, err := l.datasource.CreateReward(ctx, reward)
	if err != nil {
		return model.Reward{}, err
	}

	l.postRewardActions(ctx, &reward)
	return reward, nil
}

// GetReward retrieves a reward by its ID.
func (l *Tally) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	return l.datasource.GetRewardByID(ctx, id)
}

// GetRewardByCode retrieves a reward by its catalog code.
func (l *Tally) GetRewardByCode(ctx context.Context, code string) (*model.Reward, error) {
	return l.datasource.GetRewardByCode(ctx, code)
}

// GetAllRewards retrieves a page of catalog entries.
func (l *Tally) GetAllRewards(ctx context.Context, limit, offset int) ([]model.Reward, error) {
	return l.datasource.GetAllRewards(ctx, limit, offset)
}

// UpdateReward updates a catalog entry. The reward code itself is immutable;
// redemptions reference it.
func (l *Tally) UpdateReward(ctx context.Context, reward *model.Reward) error {
	if err := reward.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	if err := l.datasource.UpdateReward(ctx, reward); err != nil {
		return err
	}

	l.postRewardActions(ctx, reward)
	return nil
}

// DeactivateReward retires a catalog entry. Existing redemptions of the
// reward are unaffected; new requests for it are refused.
func (l *Tally) DeactivateReward(ctx context.Context, id string) (*model.Reward, error) {
	if err := l.datasource.DeactivateReward(ctx, id); err != nil {
		return nil, err
	}

	reward, err := l.datasource.GetRewardByID(ctx, id)
	if err != nil {
		return nil, err
	}

	l.postRewardActions(ctx, reward)
	return reward, nil
}
