package model

import (
	"errors"
	"strings"
	"time"
)

type Reward struct {
	ID          int64                  `json:"-"`
	RewardID    string                 `json:"reward_id"`
	Code        string                 `json:"code"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	PointsCost  int64                  `json:"points_cost"`
	Active      bool                   `json:"active"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

func (reward *Reward) Validate() error {
	if strings.TrimSpace(reward.Code) == "" {
		return errors.New("reward code is required")
	}
	if strings.TrimSpace(reward.Name) == "" {
		return errors.New("reward name is required")
	}
	if reward.PointsCost <= 0 {
		return errors.New("reward points cost must be positive")
	}
	return nil
}
