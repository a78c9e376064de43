package lifecycle

import (
	"rentcrm/internal/domain"
	"rentcrm/internal/models"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionCancel Action = "cancel"
)

// Policy holds the configurable lifecycle rules.
type Policy struct {
	// AllowCancelledEdits lets agents modify or re-cancel a cancelled booking.
	// The action is recorded but the status stays CANCELLED.
	AllowCancelledEdits bool
}

// NextStatus returns the status a booking moves to when action is applied.
// Cancellation is never reversed.
func NextStatus(current string, action Action, policy Policy) (string, error) {
	if action == ActionCreate {
		if current != "" {
			return "", domain.Validationf("booking already exists")
		}
		return models.StatusBooked, nil
	}

	switch current {
	case models.StatusBooked, models.StatusModified:
	case models.StatusCancelled:
		if !policy.AllowCancelledEdits {
			return "", domain.ErrBookingCancelled
		}
		return models.StatusCancelled, nil
	default:
		return "", domain.Validationf("unknown booking status %q", current)
	}

	switch action {
	case ActionModify:
		return models.StatusModified, nil
	case ActionCancel:
		return models.StatusCancelled, nil
	default:
		return "", domain.Validationf("unknown action %q", action)
	}
}
