package models

import (
	"fmt"
	"time"
)

// ChangeKind tags how a FieldChange should be rendered.
type ChangeKind string

const (
	ChangeUpdated    ChangeKind = "updated"
	ChangeMCO        ChangeKind = "mco_changed"
	ChangeMCOSet     ChangeKind = "mco_set"
	ChangeRefundSet  ChangeKind = "refund_set"
	ChangeRefundEdit ChangeKind = "refund_changed"
)

// FieldChange is one structured audit item. Text for people is derived
// from it with Render and is never parsed back.
type FieldChange struct {
	Field    string     `json:"field"`
	Label    string     `json:"label,omitempty"`
	OldValue string     `json:"oldValue"`
	NewValue string     `json:"newValue"`
	Kind     ChangeKind `json:"kind"`
}

// Render formats the change as a single human readable line.
func (c FieldChange) Render() string {
	switch c.Kind {
	case ChangeMCO, ChangeRefundEdit:
		if c.OldValue == "" {
			return fmt.Sprintf("%s set to %s", c.label(), Dollars(c.NewValue))
		}
		return fmt.Sprintf("%s changed from %s to %s", c.label(), Dollars(c.OldValue), Dollars(c.NewValue))
	case ChangeMCOSet, ChangeRefundSet:
		return fmt.Sprintf("%s set to %s", c.label(), Dollars(c.NewValue))
	default:
		return fmt.Sprintf("%s updated to %s", c.Field, c.NewValue)
	}
}

func (c FieldChange) label() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Field
}

// TimelineEntry is one audit record appended per lifecycle action.
type TimelineEntry struct {
	Date      time.Time     `json:"date"`
	Message   string        `json:"message"`
	AgentName string        `json:"agentName"`
	Changes   []FieldChange `json:"changes"`
}

// Lines renders every change of the entry.
func (e TimelineEntry) Lines() []string {
	lines := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		lines = append(lines, c.Render())
	}
	return lines
}

// Dollars prefixes an amount with "$" unless it already carries one.
func Dollars(amount string) string {
	if amount == "" || amount[0] == '$' {
		return amount
	}
	return "$" + amount
}
