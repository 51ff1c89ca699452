package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/tallyhq/tally/internal/apierror"
)

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// statusSynonyms maps every accepted spelling of a status, lower-cased, to
// its canonical form. The table is closed: anything not listed here is
// rejected by NormalizeStatus. The Spanish variants come from the portal UI
// the approval queue was first built for.
var statusSynonyms = map[string]string{
	"pending":   StatusPending,
	"pendiente": StatusPending,
	"requested": StatusPending,
	"approved":  StatusApproved,
	"approve":   StatusApproved,
	"aprobado":  StatusApproved,
	"aprobada":  StatusApproved,
	"rejected":  StatusRejected,
	"reject":    StatusRejected,
	"denied":    StatusRejected,
	"cancelled": StatusRejected,
	"rechazado": StatusRejected,
	"rechazada": StatusRejected,
}

type Redemption struct {
	ID           int64                  `json:"-"`
	RedemptionID string                 `json:"redemption_id"`
	UserID       string                 `json:"user_id"`
	RewardCode   string                 `json:"reward_code"`
	PointsCost   int64                  `json:"points_cost"`
	Status       string                 `json:"status"`
	Reason       string                 `json:"reason,omitempty"`
	UpdatedBy    string                 `json:"updated_by,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	MetaData     map[string]interface{} `json:"meta_data,omitempty"`
}

func (redemption *Redemption) ToJSON() ([]byte, error) {
	return json.Marshal(redemption)
}

// Validate enforces the record-level invariants a redemption must satisfy
// before any transition is applied.
func (redemption *Redemption) Validate() error {
	if strings.TrimSpace(redemption.UserID) == "" {
		return errors.New("redemption has no user id")
	}
	if redemption.PointsCost <= 0 {
		return errors.New("redemption points cost must be positive")
	}
	return nil
}

// IsTerminalStatus reports whether status permits no further transitions.
func IsTerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// NormalizeStatus maps a raw, possibly localized status string to its
// canonical form. Unrecognized values produce an INVALID_INPUT error whose
// details carry the nearest known spelling as a suggestion.
func NormalizeStatus(raw string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := statusSynonyms[cleaned]; ok {
		return canonical, nil
	}

	suggestion := nearestStatus(cleaned)
	details := map[string]interface{}{"provided": raw}
	message := "Unknown status"
	if suggestion != "" {
		details["did_you_mean"] = suggestion
		message = "Unknown status, did you mean " + suggestion + "?"
	}
	return "", apierror.NewAPIError(apierror.ErrInvalidInput, message, details)
}

// nearestStatus returns the accepted spelling closest to cleaned, or "" when
// nothing is within editing distance 3.
func nearestStatus(cleaned string) string {
	best := ""
	bestDistance := 4
	for synonym := range statusSynonyms {
		d := levenshtein.DistanceForStrings([]rune(cleaned), []rune(synonym), levenshtein.DefaultOptions)
		if d < bestDistance {
			bestDistance = d
			best = synonym
		}
	}
	return best
}
