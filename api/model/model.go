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
package model

import (
	"github.com/tallyhq/tally/model"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CreateReward is the request body for adding a reward to the catalog.
type CreateReward struct {
	Code        string                 `json:"code"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	PointsCost  int64                  `json:"points_cost"`
	MetaData    map[string]interface{} `json:"meta_data"`
}

// UpdateReward is the request body for updating a catalog entry. The reward
// code is immutable and deliberately absent.
type UpdateReward struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	PointsCost  int64                  `json:"points_cost"`
	Active      *bool                  `json:"active"`
	MetaData    map[string]interface{} `json:"meta_data"`
}

// CreateRedemption is the request body for a user redeeming a reward.
type CreateRedemption struct {
	UserID     string                 `json:"user_id"`
	RewardCode string                 `json:"reward_code"`
	MetaData   map[string]interface{} `json:"meta_data"`
}

// UpdateRedemptionStatus is the request body for an admin decision on a
// pending redemption.
type UpdateRedemptionStatus struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	UpdatedBy string `json:"updated_by"`
}

// CreateBalance is the request body for opening a points balance.
type CreateBalance struct {
	UserID          string `json:"user_id"`
	AvailablePoints int64  `json:"available_points"`
}

// AdjustBalance is the request body for an admin points adjustment.
type AdjustBalance struct {
	Delta     int64  `json:"delta"`
	Note      string `json:"note"`
	UpdatedBy string `json:"updated_by"`
}

func (r *CreateReward) ValidateCreateReward() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Code, validation.Required),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.PointsCost, validation.Required, validation.Min(1)),
	)
}

func (r *UpdateReward) ValidateUpdateReward() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.PointsCost, validation.Required, validation.Min(1)),
	)
}

func (r *CreateRedemption) ValidateCreateRedemption() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.RewardCode, validation.Required),
	)
}

func (u *UpdateRedemptionStatus) ValidateUpdateRedemptionStatus() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Status, validation.Required),
	)
}

func (b *CreateBalance) ValidateCreateBalance() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.UserID, validation.Required),
		validation.Field(&b.AvailablePoints, validation.Min(0)),
	)
}

func (a *AdjustBalance) ValidateAdjustBalance() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Delta, validation.Required.Error("delta must be a non-zero number of points")),
		validation.Field(&a.Note, validation.Required),
	)
}

func (r *CreateReward) ToReward() model.Reward {
	return model.Reward{Code: r.Code, Name: r.Name, Description: r.Description, PointsCost: r.PointsCost, MetaData: r.MetaData}
}

func (r *UpdateReward) ToReward(rewardID string) *model.Reward {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &model.Reward{RewardID: rewardID, Name: r.Name, Description: r.Description, PointsCost: r.PointsCost, Active: active, MetaData: r.MetaData}
}

func (b *CreateBalance) ToBalance() model.Balance {
	return model.Balance{UserID: b.UserID, AvailablePoints: b.AvailablePoints}
}
