package models

import "time"

// Booking is a rental reservation managed by agents. Timeline and Notes are
// append-ordered; Version is bumped on every successful write.
type Booking struct {
	ID string `json:"id"`

	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"dateOfBirth"`

	RentalCompany      string `json:"rentalCompany"`
	ConfirmationNumber string `json:"confirmationNumber"`
	VehicleImage       string `json:"vehicleImage"`
	PickupLocation     string `json:"pickupLocation"`
	PickupDate         string `json:"pickupDate"`
	PickupTime         string `json:"pickupTime"`
	DropoffLocation    string `json:"dropoffLocation"`
	DropoffDate        string `json:"dropoffDate"`
	DropoffTime        string `json:"dropoffTime"`

	Total            string   `json:"total"`
	MCO              string   `json:"mco"`
	PayableAtPickup  string   `json:"payableAtPickup"`
	RefundAmount     string   `json:"refundAmount"`
	ModificationFees []string `json:"modificationFees"`

	CardLast4      string `json:"cardLast4"`
	CardExpiration string `json:"cardExpiration"`
	BillingAddress string `json:"billingAddress"`

	SalesAgent string `json:"salesAgent"`
	AgentID    string `json:"agentId"`

	Status   string          `json:"status"`
	Timeline []TimelineEntry `json:"timeline"`
	Notes    []Note          `json:"notes"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can patch a snapshot without
// touching the original.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.ModificationFees = append([]string(nil), b.ModificationFees...)
	c.Timeline = make([]TimelineEntry, len(b.Timeline))
	for i, e := range b.Timeline {
		e.Changes = append([]FieldChange(nil), e.Changes...)
		c.Timeline[i] = e
	}
	c.Notes = append([]Note(nil), b.Notes...)
	return &c
}

// LastEntry returns the most recent timeline entry, if any.
func (b *Booking) LastEntry() (TimelineEntry, bool) {
	if len(b.Timeline) == 0 {
		return TimelineEntry{}, false
	}
	return b.Timeline[len(b.Timeline)-1], true
}
