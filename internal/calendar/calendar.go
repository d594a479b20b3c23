package calendar

import (
	"context"
	"time"

	"github.com/example/reservation-engine/internal/timeperiod"
)

// Appointment mirrors one reservation occurrence (or a whole series) in the
// external calendar system.
type Appointment struct {
	CorrelationID string
	Subject       string
	Location      string
	Attendees     []string
	Window        timeperiod.TimePeriod
	RuleText      string
}

// AttendeeAvailability reports an attendee's busy windows inside a queried
// range.
type AttendeeAvailability struct {
	Attendee string
	Busy     []timeperiod.TimePeriod
}

// AppointmentService is the calendar collaborator the engine calls into.
// Failures here are non-fatal to reservation state: once a reservation is
// durably saved, calendar errors surface as sync warnings, never as
// operation failures.
type AppointmentService interface {
	CreateAppointment(ctx context.Context, appt Appointment) (correlationID string, err error)
	UpdateAppointment(ctx context.Context, appt Appointment) error
	UpdateAppointmentOccurrence(ctx context.Context, correlationID string, occurrence Appointment) error
	CancelAppointment(ctx context.Context, correlationID string) error
	CancelAppointmentOccurrence(ctx context.Context, correlationID string, date time.Time) error
	FindAttendeeAvailability(ctx context.Context, attendees []string, window timeperiod.TimePeriod) ([]AttendeeAvailability, error)
}

// WorkRequest asks the facilities collaborator for setup/teardown work around
// a reservation occurrence.
type WorkRequest struct {
	ReservationID string
	BuildingID    string
	Description   string
	Window        timeperiod.TimePeriod
}

// WorkOrderService is the work-order collaborator.
type WorkOrderService interface {
	CreateWorkRequest(ctx context.Context, req WorkRequest) (string, error)
	CancelWorkRequest(ctx context.Context, id string) error
}
