package notify

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"rentcrm/internal/events"
	"rentcrm/internal/models"
)

// ErrNoTemplate is returned for events that have no customer email.
var ErrNoTemplate = errors.New("no email template for event")

// Email is a rendered customer message.
type Email struct {
	Subject string
	HTML    string
}

const emailLayout = `<html>
	<body>
		<h2>{{.Heading}}</h2>
		<p>Dear {{.Booking.CustomerName}},</p>
		<p>{{.Intro}}</p>
		<table>
			<tr><td>Reference</td><td>{{.Booking.BookingID}}</td></tr>
			{{- if .Booking.RentalCompany}}
			<tr><td>Rental company</td><td>{{.Booking.RentalCompany}}</td></tr>
			{{- end}}
			{{- if .Booking.PickupDate}}
			<tr><td>Pickup date</td><td>{{.Booking.PickupDate}}</td></tr>
			{{- end}}
			<tr><td>Status</td><td>{{.Booking.Status}}</td></tr>
		</table>
		{{- if .Lines}}
		<ul>
			{{- range .Lines}}
			<li>{{.}}</li>
			{{- end}}
		</ul>
		{{- end}}
		{{- if .Link}}
		<p><a href="{{.Link}}">View booking</a></p>
		{{- end}}
		<p>Handled by {{.Booking.AgentName}}</p>
	</body>
</html>`

var emailTemplate = template.Must(template.New("booking_email").Parse(emailLayout))

type emailData struct {
	Heading string
	Intro   string
	Lines   []string
	Link    string
	Booking events.BookingEventPayload
}

type emailCopy struct {
	subject string
	heading string
	intro   string
}

var emailCopies = map[string]emailCopy{
	events.EventBookingCreated: {
		subject: "Your booking is confirmed",
		heading: "Booking confirmation",
		intro:   "Thank you for booking with us. Your reservation is confirmed.",
	},
	events.EventBookingModified: {
		subject: "Your booking has been updated",
		heading: "Booking modification",
		intro:   "Your reservation was updated with the following changes.",
	},
	events.EventBookingCancelled: {
		subject: "Your booking has been cancelled",
		heading: "Booking cancellation",
		intro:   "Your reservation has been cancelled.",
	},
}

// RenderBookingEmail builds the customer email for eventType from the
// structured changes carried by the payload.
func RenderBookingEmail(eventType string, p events.BookingEventPayload, baseURL string) (Email, error) {
	c, ok := emailCopies[eventType]
	if !ok {
		return Email{}, fmt.Errorf("%w: %s", ErrNoTemplate, eventType)
	}

	data := emailData{
		Heading: c.heading,
		Intro:   c.intro,
		Lines:   renderChanges(p.Changes),
		Booking: p,
	}
	if baseURL != "" {
		data.Link = strings.TrimRight(baseURL, "/") + "/bookings/" + p.BookingID
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return Email{}, fmt.Errorf("render %s email: %w", eventType, err)
	}

	subject := c.subject
	if p.RentalCompany != "" {
		subject += " (" + p.RentalCompany + ")"
	}
	return Email{Subject: subject, HTML: buf.String()}, nil
}

// RenderManagerAlert formats the plain text message sent to managers.
func RenderManagerAlert(eventType string, p events.BookingEventPayload) string {
	var title string
	switch eventType {
	case events.EventBookingCreated:
		title = "New booking"
	case events.EventBookingModified:
		title = "Booking modified"
	case events.EventBookingCancelled:
		title = "Booking cancelled"
	case events.EventNoteAdded:
		title = "Note added"
	default:
		title = eventType
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", title)
	fmt.Fprintf(&sb, "Customer: %s\n", p.CustomerName)
	if p.RentalCompany != "" {
		fmt.Fprintf(&sb, "Company: %s\n", p.RentalCompany)
	}
	if p.PickupDate != "" {
		fmt.Fprintf(&sb, "Pickup: %s\n", p.PickupDate)
	}
	fmt.Fprintf(&sb, "Status: %s\n", p.Status)
	fmt.Fprintf(&sb, "Agent: %s\n", p.AgentName)
	for _, line := range renderChanges(p.Changes) {
		fmt.Fprintf(&sb, "- %s\n", line)
	}
	fmt.Fprintf(&sb, "ID: %s", p.BookingID)
	return sb.String()
}

func renderChanges(changes []models.FieldChange) []string {
	return models.TimelineEntry{Changes: changes}.Lines()
}
