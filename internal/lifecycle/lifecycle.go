// Package lifecycle holds the booking state machine and builds the audit
// timeline entries for create, modify and cancel actions. Everything here
// is pure: callers persist the results.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"
)

const (
	MessageCreated = "New booking created"
)

// Selection is one field the agent marked as changed, with its new value.
type Selection struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// CancelRequest carries the optional amounts submitted with a cancellation.
// Empty strings mean "not supplied".
type CancelRequest struct {
	MCO          string `json:"mco"`
	RefundAmount string `json:"refundAmount"`
}

// Create prepares a new booking from draft: status BOOKED and a single
// creation entry. draft.ID must already be assigned.
func Create(draft *models.Booking, agent domain.Identity, now time.Time) (*models.Booking, error) {
	if draft == nil {
		return nil, domain.Validationf("booking is required")
	}
	if strings.TrimSpace(draft.ID) == "" {
		return nil, domain.Validationf("booking id is required")
	}
	if strings.TrimSpace(draft.FullName) == "" {
		return nil, domain.Validationf("fullName is required")
	}
	if agent.AgentID == "" {
		return nil, domain.ErrUnauthorized
	}

	status, err := NextStatus("", ActionCreate, Policy{})
	if err != nil {
		return nil, err
	}

	b := draft.Clone()
	b.Status = status
	b.AgentID = agent.AgentID
	if strings.TrimSpace(b.SalesAgent) == "" {
		b.SalesAgent = agent.AgentName
	}
	b.Timeline = []models.TimelineEntry{NewCreationEntry(agent, now)}
	b.Notes = nil
	b.Version = 0
	b.CreatedAt = now
	b.UpdatedAt = now
	return b, nil
}

// NewCreationEntry is the first timeline entry of every booking.
func NewCreationEntry(agent domain.Identity, now time.Time) models.TimelineEntry {
	return models.TimelineEntry{
		Date:      now,
		Message:   MessageCreated,
		AgentName: agent.AgentName,
		Changes:   []models.FieldChange{},
	}
}

// BuildModification applies the agent's selection to a copy of prev. Every selected
// field is recorded, even when the value is unchanged: the log reflects
// what the operator touched, not a value diff.
func BuildModification(prev *models.Booking, selection []Selection, agent domain.Identity, now time.Time, policy Policy) (*models.Booking, models.TimelineEntry, error) {
	if prev == nil {
		return nil, models.TimelineEntry{}, domain.ErrBookingNotFound
	}
	if len(selection) == 0 {
		return nil, models.TimelineEntry{}, domain.ErrNoChanges
	}

	seen := make(map[string]bool, len(selection))
	for _, s := range selection {
		if !IsKnownField(s.Field) {
			return nil, models.TimelineEntry{}, domain.Validationf("unknown field %q", s.Field)
		}
		if seen[s.Field] {
			return nil, models.TimelineEntry{}, domain.Validationf("field %q selected twice", s.Field)
		}
		seen[s.Field] = true
	}

	status, err := NextStatus(prev.Status, ActionModify, policy)
	if err != nil {
		return nil, models.TimelineEntry{}, err
	}

	next := prev.Clone()
	changes := make([]models.FieldChange, 0, len(selection))
	for _, s := range selection {
		f := bookingFields[s.Field]
		changes = append(changes, models.FieldChange{
			Field:    s.Field,
			OldValue: f.get(prev),
			NewValue: s.Value,
			Kind:     models.ChangeUpdated,
		})
		f.set(next, s.Value)
	}
	next.Status = status
	next.UpdatedAt = now

	entry := models.TimelineEntry{
		Date:      now,
		Message:   fmt.Sprintf("Updated %d field(s)", len(changes)),
		AgentName: agent.AgentName,
		Changes:   changes,
	}
	return next, entry, nil
}

// BuildCancellation moves a copy of prev to CANCELLED. Only two derived changes are
// itemised: an MCO that differs numerically from the stored one and a refund
// amount that is new or different. The entry is produced even when neither
// applies.
func BuildCancellation(prev *models.Booking, req CancelRequest, agent domain.Identity, now time.Time, policy Policy) (*models.Booking, models.TimelineEntry, error) {
	if prev == nil {
		return nil, models.TimelineEntry{}, domain.ErrBookingNotFound
	}

	status, err := NextStatus(prev.Status, ActionCancel, policy)
	if err != nil {
		return nil, models.TimelineEntry{}, err
	}

	next := prev.Clone()
	changes := []models.FieldChange{}

	if mco := strings.TrimSpace(req.MCO); mco != "" && !sameAmount(prev.MCO, mco) {
		old := strings.TrimSpace(prev.MCO)
		kind := models.ChangeMCO
		if old == "" {
			kind = models.ChangeMCOSet
		}
		changes = append(changes, models.FieldChange{
			Field:    "mco",
			Label:    models.LabelMCO,
			OldValue: old,
			NewValue: mco,
			Kind:     kind,
		})
		next.MCO = mco
	}

	if refund := strings.TrimSpace(req.RefundAmount); refund != "" {
		old := strings.TrimSpace(prev.RefundAmount)
		switch {
		case old == "":
			changes = append(changes, models.FieldChange{
				Field:    "refundAmount",
				Label:    models.LabelRefund,
				NewValue: refund,
				Kind:     models.ChangeRefundSet,
			})
			next.RefundAmount = refund
		case !sameAmount(old, refund):
			changes = append(changes, models.FieldChange{
				Field:    "refundAmount",
				Label:    models.LabelRefund,
				OldValue: old,
				NewValue: refund,
				Kind:     models.ChangeRefundEdit,
			})
			next.RefundAmount = refund
		}
	}

	next.Status = status
	next.UpdatedAt = now

	entry := models.TimelineEntry{
		Date:      now,
		Message:   fmt.Sprintf("Cancellation processed by %s", agent.AgentName),
		AgentName: agent.AgentName,
		Changes:   changes,
	}
	return next, entry, nil
}
