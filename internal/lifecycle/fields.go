package lifecycle

import (
	"sort"

	"rentcrm/internal/models"
)

type fieldAccessor struct {
	get func(*models.Booking) string
	set func(*models.Booking, string)
}

// FieldModificationFee appends a fee entry instead of overwriting a value.
const FieldModificationFee = "modificationFee"

var bookingFields = map[string]fieldAccessor{
	"fullName":           {func(b *models.Booking) string { return b.FullName }, func(b *models.Booking, v string) { b.FullName = v }},
	"email":              {func(b *models.Booking) string { return b.Email }, func(b *models.Booking, v string) { b.Email = v }},
	"phone":              {func(b *models.Booking) string { return b.Phone }, func(b *models.Booking, v string) { b.Phone = v }},
	"dateOfBirth":        {func(b *models.Booking) string { return b.DateOfBirth }, func(b *models.Booking, v string) { b.DateOfBirth = v }},
	"rentalCompany":      {func(b *models.Booking) string { return b.RentalCompany }, func(b *models.Booking, v string) { b.RentalCompany = v }},
	"confirmationNumber": {func(b *models.Booking) string { return b.ConfirmationNumber }, func(b *models.Booking, v string) { b.ConfirmationNumber = v }},
	"vehicleImage":       {func(b *models.Booking) string { return b.VehicleImage }, func(b *models.Booking, v string) { b.VehicleImage = v }},
	"pickupLocation":     {func(b *models.Booking) string { return b.PickupLocation }, func(b *models.Booking, v string) { b.PickupLocation = v }},
	"pickupDate":         {func(b *models.Booking) string { return b.PickupDate }, func(b *models.Booking, v string) { b.PickupDate = v }},
	"pickupTime":         {func(b *models.Booking) string { return b.PickupTime }, func(b *models.Booking, v string) { b.PickupTime = v }},
	"dropoffLocation":    {func(b *models.Booking) string { return b.DropoffLocation }, func(b *models.Booking, v string) { b.DropoffLocation = v }},
	"dropoffDate":        {func(b *models.Booking) string { return b.DropoffDate }, func(b *models.Booking, v string) { b.DropoffDate = v }},
	"dropoffTime":        {func(b *models.Booking) string { return b.DropoffTime }, func(b *models.Booking, v string) { b.DropoffTime = v }},
	"total":              {func(b *models.Booking) string { return b.Total }, func(b *models.Booking, v string) { b.Total = v }},
	"mco":                {func(b *models.Booking) string { return b.MCO }, func(b *models.Booking, v string) { b.MCO = v }},
	"payableAtPickup":    {func(b *models.Booking) string { return b.PayableAtPickup }, func(b *models.Booking, v string) { b.PayableAtPickup = v }},
	"refundAmount":       {func(b *models.Booking) string { return b.RefundAmount }, func(b *models.Booking, v string) { b.RefundAmount = v }},
	"cardLast4":          {func(b *models.Booking) string { return b.CardLast4 }, func(b *models.Booking, v string) { b.CardLast4 = v }},
	"cardExpiration":     {func(b *models.Booking) string { return b.CardExpiration }, func(b *models.Booking, v string) { b.CardExpiration = v }},
	"billingAddress":     {func(b *models.Booking) string { return b.BillingAddress }, func(b *models.Booking, v string) { b.BillingAddress = v }},
	"salesAgent":         {func(b *models.Booking) string { return b.SalesAgent }, func(b *models.Booking, v string) { b.SalesAgent = v }},
	FieldModificationFee: {
		func(b *models.Booking) string {
			if len(b.ModificationFees) == 0 {
				return ""
			}
			return b.ModificationFees[len(b.ModificationFees)-1]
		},
		func(b *models.Booking, v string) { b.ModificationFees = append(b.ModificationFees, v) },
	},
}

// FieldNames lists the fields an agent may select for modification.
func FieldNames() []string {
	names := make([]string, 0, len(bookingFields))
	for name := range bookingFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnownField reports whether name can be selected for modification.
func IsKnownField(name string) bool {
	_, ok := bookingFields[name]
	return ok
}

// FieldValue reads a selectable field from b.
func FieldValue(b *models.Booking, name string) (string, bool) {
	f, ok := bookingFields[name]
	if !ok {
		return "", false
	}
	return f.get(b), true
}
