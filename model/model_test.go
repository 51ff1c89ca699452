package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/apierror"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("rdm")
	assert.True(t, strings.HasPrefix(id, "rdm_"))
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("rdm"))
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"APPROVED", StatusApproved},
		{"approved", StatusApproved},
		{"Approve", StatusApproved},
		{"  aprobado  ", StatusApproved},
		{"Aprobada", StatusApproved},
		{"REJECTED", StatusRejected},
		{"reject", StatusRejected},
		{"Denied", StatusRejected},
		{"rechazado", StatusRejected},
		{"RECHAZADA", StatusRejected},
		{"Cancelled", StatusRejected},
		{"pending", StatusPending},
		{"Pendiente", StatusPending},
		{"REQUESTED", StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeStatus(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeStatusUnknown(t *testing.T) {
	_, err := NormalizeStatus("SHIPPED")
	require.Error(t, err)

	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestNormalizeStatusSuggestsNearestSpelling(t *testing.T) {
	_, err := NormalizeStatus("aproved")
	require.Error(t, err)

	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	details, ok := apiErr.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "approved", details["did_you_mean"])
	assert.Equal(t, "aproved", details["provided"])
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(StatusApproved))
	assert.True(t, IsTerminalStatus(StatusRejected))
	assert.False(t, IsTerminalStatus(StatusPending))
	assert.False(t, IsTerminalStatus(""))
}

func TestRedemptionValidate(t *testing.T) {
	valid := Redemption{UserID: "usr_1", PointsCost: 100}
	assert.NoError(t, valid.Validate())

	noUser := Redemption{PointsCost: 100}
	assert.EqualError(t, noUser.Validate(), "redemption has no user id")

	badCost := Redemption{UserID: "usr_1", PointsCost: 0}
	assert.EqualError(t, badCost.Validate(), "redemption points cost must be positive")
}

func TestRewardValidate(t *testing.T) {
	valid := Reward{Code: "GIFT50", Name: "Gift Card", PointsCost: 500}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&Reward{Name: "Gift Card", PointsCost: 500}).Validate())
	assert.Error(t, (&Reward{Code: "GIFT50", PointsCost: 500}).Validate())
	assert.Error(t, (&Reward{Code: "GIFT50", Name: "Gift Card", PointsCost: -1}).Validate())
}
