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
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sirupsen/logrus"

	"github.com/tallyhq/tally/internal/apierror"
	redlock "github.com/tallyhq/tally/internal/lock"
	"github.com/tallyhq/tally/internal/notification"
	"github.com/tallyhq/tally/internal/search"
	"github.com/tallyhq/tally/model"
)

var (
	tracer = otel.Tracer("redemption.lifecycle")
)

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// acquireLock locks on the user ID so concurrent writes to the same user's
// points are serialized.
func (l *Tally) acquireLock(ctx context.Context, userID string) (*redlock.Locker, error) {
	locker := redlock.NewLocker(l.redis, userID, model.GenerateUUIDWithSuffix("loc"))
	err := locker.Lock(ctx, time.Minute*30)
	if err != nil {
		return nil, err
	}
	return locker, nil
}

func (l *Tally) releaseLock(ctx context.Context, locker *redlock.Locker) {
	if err := locker.Unlock(ctx); err != nil {
		logrus.Error("failed to release lock", err)
	}
}

// postRedemptionActions indexes the redemption for search and notifies
// webhook subscribers. Failures here never fail the redemption itself.
func (l *Tally) postRedemptionActions(_ context.Context, redemption *model.Redemption) {
	go func() {
		err := l.queue.queueIndexData(redemption.RedemptionID, search.CollectionRedemptions, redemption)
		if err != nil {
			notification.NotifyError(err)
		}
		err = SendWebhook(NewWebhook{
			Event:   getEventFromStatus(redemption.Status),
			Payload: redemption,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

// RequestRedemption creates a PENDING redemption of the given reward for a
// user. The reward's current points cost is captured on the redemption and
// debited from the user's available points up front, so a later rejection
// refunds exactly what was held.
func (l *Tally) RequestRedemption(ctx context.Context, userID, rewardCode string, metaData map[string]interface{}) (*model.Redemption, error) {
	ctx, span := tracer.Start(ctx, "Requesting Redemption")
	defer span.End()

	reward, err := l.datasource.GetRewardByCode(ctx, rewardCode)
	if err != nil {
		return nil, logAndRecordError(span, "fetch reward error", err)
	}
	if !reward.Active {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("Reward '%s' is no longer active", rewardCode), nil)
	}

	redemption := &model.Redemption{
		UserID:     userID,
		RewardCode: reward.Code,
		PointsCost: reward.PointsCost,
		Status:     model.StatusPending,
		MetaData:   metaData,
	}
	if err := redemption.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	locker, err := l.acquireLock(ctx, userID)
	if err != nil {
		return nil, logAndRecordError(span, "lock error", err)
	}
	defer l.releaseLock(ctx, locker)

	redemption, err = l.datasource.CreateRedemption(ctx, redemption)
	if err != nil {
		return nil, logAndRecordError(span, "saving redemption to db error", err)
	}

	l.postRedemptionActions(ctx, redemption)
	return redemption, nil
}

// QueueRedemption validates a redemption request and hands it to the Redis
// queue for asynchronous processing. The redemption ID is assigned here so
// the caller can poll for the result and queue retries stay idempotent.
func (l *Tally) QueueRedemption(ctx context.Context, userID, rewardCode string, metaData map[string]interface{}) (*model.Redemption, error) {
	ctx, span := tracer.Start(ctx, "Queuing Redemption")
	defer span.End()

	reward, err := l.datasource.GetRewardByCode(ctx, rewardCode)
	if err != nil {
		return nil, logAndRecordError(span, "fetch reward error", err)
	}
	if !reward.Active {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("Reward '%s' is no longer active", rewardCode), nil)
	}

	redemption := &model.Redemption{
		RedemptionID: model.GenerateUUIDWithSuffix("rdm"),
		UserID:       userID,
		RewardCode:   reward.Code,
		PointsCost:   reward.PointsCost,
		Status:       model.StatusPending,
		MetaData:     metaData,
		CreatedAt:    time.Now(),
	}
	if err := redemption.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	if err := l.queue.Enqueue(ctx, redemption); err != nil {
		return nil, logAndRecordError(span, "enqueue redemption error", err)
	}
	return redemption, nil
}

// ProcessQueuedRedemption persists a redemption picked off the Redis queue.
// A replayed task whose redemption already landed is treated as done.
func (l *Tally) ProcessQueuedRedemption(ctx context.Context, redemption *model.Redemption) (*model.Redemption, error) {
	ctx, span := tracer.Start(ctx, "Processing Queued Redemption")
	defer span.End()

	locker, err := l.acquireLock(ctx, redemption.UserID)
	if err != nil {
		return nil, logAndRecordError(span, "lock error", err)
	}
	defer l.releaseLock(ctx, locker)

	created, err := l.datasource.CreateRedemption(ctx, redemption)
	if err != nil {
		return nil, logAndRecordError(span, "saving redemption to db error", err)
	}

	l.postRedemptionActions(ctx, created)
	return created, nil
}

// UpdateRedemptionStatus moves a redemption to a terminal status and applies
// the matching points movements. Replaying an already-applied decision
// returns the stored record unchanged, as does any attempt against an
// already-settled redemption: refusals succeed without writing anything.
func (l *Tally) UpdateRedemptionStatus(ctx context.Context, id, status, reason, actor string) (*model.Redemption, error) {
	ctx, span := tracer.Start(ctx, "Updating Redemption Status")
	defer span.End()

	target, err := model.NormalizeStatus(status)
	if err != nil {
		return nil, err
	}

	redemption, err := l.datasource.GetRedemption(ctx, id)
	if err != nil {
		return nil, logAndRecordError(span, "fetch redemption error", err)
	}
	if err := redemption.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
	}

	if redemption.Status == target {
		return redemption, nil
	}
	if model.IsTerminalStatus(redemption.Status) {
		// Settled redemptions are immutable; the refusal is not an error.
		return redemption, nil
	}

	locker, err := l.acquireLock(ctx, redemption.UserID)
	if err != nil {
		return nil, logAndRecordError(span, "lock error", err)
	}
	defer l.releaseLock(ctx, locker)

	applied, err := l.datasource.FinalizeRedemption(ctx, redemption, target, reason, actor)
	if err != nil {
		return nil, logAndRecordError(span, "finalize redemption error", err)
	}

	if !applied {
		// Another writer won the status flip. The winner's record stands,
		// whether or not it carries the status this call asked for.
		current, err := l.datasource.GetRedemption(ctx, id)
		if err != nil {
			return nil, logAndRecordError(span, "fetch redemption error", err)
		}
		return current, nil
	}

	final, err := l.datasource.GetRedemption(ctx, id)
	if err != nil {
		return nil, logAndRecordError(span, "fetch redemption error", err)
	}

	l.postRedemptionActions(ctx, final)
	return final, nil
}

// GetRedemption retrieves a single redemption by its ID.
func (l *Tally) GetRedemption(ctx context.Context, id string) (*model.Redemption, error) {
	return l.datasource.GetRedemption(ctx, id)
}

// GetRedemptions retrieves a page of redemptions, optionally filtered by
// status. The returned token fetches the next page when non-empty.
func (l *Tally) GetRedemptions(ctx context.Context, status string, limit int, nextToken string) ([]*model.Redemption, string, error) {
	if status != "" {
		normalized, err := model.NormalizeStatus(status)
		if err != nil {
			return nil, "", err
		}
		status = normalized
	}
	return l.datasource.GetRedemptionsPaginated(ctx, status, limit, nextToken)
}
