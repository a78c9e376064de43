package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFieldChange_Render(t *testing.T) {
	tests := []struct {
		name   string
		change FieldChange
		want   string
	}{
		{
			name:   "Updated",
			change: FieldChange{Field: "pickupLocation", NewValue: "LAX", Kind: ChangeUpdated},
			want:   "pickupLocation updated to LAX",
		},
		{
			name:   "MCO",
			change: FieldChange{Field: "mco", Label: LabelMCO, OldValue: "100", NewValue: "$75", Kind: ChangeMCO},
			want:   "MCO changed from $100 to $75",
		},
		{
			name:   "MCOSet",
			change: FieldChange{Field: "mco", Label: LabelMCO, NewValue: "50", Kind: ChangeMCOSet},
			want:   "MCO set to $50",
		},
		{
			name:   "ChangedWithoutOldValue",
			change: FieldChange{Field: "mco", Label: LabelMCO, NewValue: "50", Kind: ChangeMCO},
			want:   "MCO set to $50",
		},
		{
			name:   "RefundSet",
			change: FieldChange{Field: "refundAmount", Label: LabelRefund, NewValue: "20", Kind: ChangeRefundSet},
			want:   "Refund amount set to $20",
		},
		{
			name:   "RefundChanged",
			change: FieldChange{Field: "refundAmount", Label: LabelRefund, OldValue: "20", NewValue: "30", Kind: ChangeRefundEdit},
			want:   "Refund amount changed from $20 to $30",
		},
		{
			name:   "MissingLabelUsesField",
			change: FieldChange{Field: "mco", OldValue: "1", NewValue: "2", Kind: ChangeMCO},
			want:   "mco changed from $1 to $2",
		},
		{
			name:   "UnknownKindFallsBack",
			change: FieldChange{Field: "phone", NewValue: "555"},
			want:   "phone updated to 555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.change.Render())
		})
	}
}

func TestBooking_CloneIsDeep(t *testing.T) {
	orig := &Booking{
		ID:               "b1",
		ModificationFees: []string{"10"},
		Timeline: []TimelineEntry{
			{Date: time.Now(), Message: "New booking created", Changes: []FieldChange{{Field: "a"}}},
		},
		Notes: []Note{{ID: "n1", Text: "hi"}},
	}

	c := orig.Clone()
	c.ModificationFees[0] = "99"
	c.Timeline[0].Changes[0].Field = "b"
	c.Notes[0].Text = "changed"

	assert.Equal(t, "10", orig.ModificationFees[0])
	assert.Equal(t, "a", orig.Timeline[0].Changes[0].Field)
	assert.Equal(t, "hi", orig.Notes[0].Text)

	var nilBooking *Booking
	assert.Nil(t, nilBooking.Clone())
}

func TestBooking_LastEntry(t *testing.T) {
	b := &Booking{}
	_, ok := b.LastEntry()
	assert.False(t, ok)

	b.Timeline = append(b.Timeline, TimelineEntry{Message: "first"}, TimelineEntry{Message: "second"})
	last, ok := b.LastEntry()
	assert.True(t, ok)
	assert.Equal(t, "second", last.Message)
}

func TestTimelineEntry_Lines(t *testing.T) {
	e := TimelineEntry{Changes: []FieldChange{
		{Field: "phone", NewValue: "1", Kind: ChangeUpdated},
		{Field: "email", NewValue: "a@b.c", Kind: ChangeUpdated},
	}}
	assert.Equal(t, []string{"phone updated to 1", "email updated to a@b.c"}, e.Lines())
	assert.Empty(t, TimelineEntry{}.Lines())
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus(StatusBooked))
	assert.True(t, IsValidStatus(StatusModified))
	assert.True(t, IsValidStatus(StatusCancelled))
	assert.False(t, IsValidStatus("pending"))
	assert.False(t, IsValidStatus(""))
}

func TestDollars(t *testing.T) {
	assert.Equal(t, "$5", Dollars("5"))
	assert.Equal(t, "$5", Dollars("$5"))
	assert.Equal(t, "", Dollars(""))
}
