package testfixtures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/reservation-engine/internal/calendar"
	"github.com/example/reservation-engine/internal/timeperiod"
)

// FakeCalendar records every appointment call and lets tests inject failures
// and canned busy windows.
type FakeCalendar struct {
	mu sync.Mutex

	// FailNext, when set, makes the next mutating call return this error.
	FailNext error
	// Busy maps attendee ids to their busy windows for free-busy lookups.
	Busy map[string][]timeperiod.TimePeriod

	Created             []calendar.Appointment
	Updated             []calendar.Appointment
	UpdatedOccurrences  []calendar.Appointment
	Cancelled           []string
	CancelledDates      []time.Time
	FreeBusyCalls       int
	nextCorrelation     uint64
	correlationOverride string
}

// NewFakeCalendar returns an empty recording calendar.
func NewFakeCalendar() *FakeCalendar {
	return &FakeCalendar{Busy: make(map[string][]timeperiod.TimePeriod)}
}

// SetCorrelationID fixes the id returned by CreateAppointment.
func (f *FakeCalendar) SetCorrelationID(id string) {
	f.mu.Lock()
	f.correlationOverride = id
	f.mu.Unlock()
}

func (f *FakeCalendar) takeFailure() error {
	err := f.FailNext
	f.FailNext = nil
	return err
}

// CreateAppointment implements calendar.AppointmentService.
func (f *FakeCalendar) CreateAppointment(_ context.Context, appt calendar.Appointment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return "", err
	}
	f.Created = append(f.Created, appt)
	if f.correlationOverride != "" {
		return f.correlationOverride, nil
	}
	f.nextCorrelation++
	return fmt.Sprintf("corr-%d", f.nextCorrelation), nil
}

// UpdateAppointment implements calendar.AppointmentService.
func (f *FakeCalendar) UpdateAppointment(_ context.Context, appt calendar.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.Updated = append(f.Updated, appt)
	return nil
}

// UpdateAppointmentOccurrence implements calendar.AppointmentService.
func (f *FakeCalendar) UpdateAppointmentOccurrence(_ context.Context, correlationID string, occurrence calendar.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	occurrence.CorrelationID = correlationID
	f.UpdatedOccurrences = append(f.UpdatedOccurrences, occurrence)
	return nil
}

// CancelAppointment implements calendar.AppointmentService.
func (f *FakeCalendar) CancelAppointment(_ context.Context, correlationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.Cancelled = append(f.Cancelled, correlationID)
	return nil
}

// CancelAppointmentOccurrence implements calendar.AppointmentService.
func (f *FakeCalendar) CancelAppointmentOccurrence(_ context.Context, correlationID string, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.Cancelled = append(f.Cancelled, correlationID)
	f.CancelledDates = append(f.CancelledDates, date)
	return nil
}

// FindAttendeeAvailability implements calendar.AppointmentService.
func (f *FakeCalendar) FindAttendeeAvailability(_ context.Context, attendees []string, _ timeperiod.TimePeriod) ([]calendar.AttendeeAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	f.FreeBusyCalls++

	out := make([]calendar.AttendeeAvailability, 0, len(attendees))
	for _, attendee := range attendees {
		out = append(out, calendar.AttendeeAvailability{
			Attendee: attendee,
			Busy:     f.Busy[attendee],
		})
	}
	return out, nil
}

// FakeWorkOrders records work-order calls.
type FakeWorkOrders struct {
	mu        sync.Mutex
	FailNext  error
	Created   []calendar.WorkRequest
	Cancelled []string
	counter   uint64
}

// CreateWorkRequest implements calendar.WorkOrderService.
func (f *FakeWorkOrders) CreateWorkRequest(_ context.Context, req calendar.WorkRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailNext; err != nil {
		f.FailNext = nil
		return "", err
	}
	f.Created = append(f.Created, req)
	f.counter++
	return fmt.Sprintf("work-%d", f.counter), nil
}

// CancelWorkRequest implements calendar.WorkOrderService.
func (f *FakeWorkOrders) CancelWorkRequest(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailNext; err != nil {
		f.FailNext = nil
		return err
	}
	f.Cancelled = append(f.Cancelled, id)
	return nil
}
