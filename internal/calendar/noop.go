package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/reservation-engine/internal/timeperiod"
)

// NoopAppointments satisfies AppointmentService without an external calendar.
// It hands out correlation ids so series linkage still works stand-alone.
type NoopAppointments struct{}

func (NoopAppointments) CreateAppointment(context.Context, Appointment) (string, error) {
	return uuid.NewString(), nil
}

func (NoopAppointments) UpdateAppointment(context.Context, Appointment) error { return nil }

func (NoopAppointments) UpdateAppointmentOccurrence(context.Context, string, Appointment) error {
	return nil
}

func (NoopAppointments) CancelAppointment(context.Context, string) error { return nil }

func (NoopAppointments) CancelAppointmentOccurrence(context.Context, string, time.Time) error {
	return nil
}

func (NoopAppointments) FindAttendeeAvailability(context.Context, []string, timeperiod.TimePeriod) ([]AttendeeAvailability, error) {
	return nil, nil
}

// NoopWorkOrders satisfies WorkOrderService without a facilities system.
type NoopWorkOrders struct{}

func (NoopWorkOrders) CreateWorkRequest(context.Context, WorkRequest) (string, error) {
	return uuid.NewString(), nil
}

func (NoopWorkOrders) CancelWorkRequest(context.Context, string) error { return nil }
