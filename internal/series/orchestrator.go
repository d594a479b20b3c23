// Package series drives the multi-record reservation operations: creating a
// recurring series as a batch of occurrence records, editing occurrences in
// place, and cancelling a series under strict or best-effort policy.
//
// Availability checks and saves are two separate steps with no transaction
// spanning both; two concurrent callers can both pass the check before either
// saves. The advisory series lock narrows that window when one is configured
// but does not close it.
package series

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/reservation-engine/internal/availability"
	"github.com/example/reservation-engine/internal/calendar"
	"github.com/example/reservation-engine/internal/config"
	"github.com/example/reservation-engine/internal/lock"
	"github.com/example/reservation-engine/internal/logging"
	"github.com/example/reservation-engine/internal/persistence"
	"github.com/example/reservation-engine/internal/recurrence"
	"github.com/example/reservation-engine/internal/reservation"
	"github.com/example/reservation-engine/internal/timeperiod"
)

// Principal identifies the caller for eligibility decisions. Owners may
// mutate their own reservations; admins may mutate any.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// CancelOptions selects the series cancellation policy. Strict aborts the
// whole operation when any occurrence is ineligible, cancelling nothing.
// Without Strict, eligible occurrences cancel and ineligible ones either land
// on the failure list or, with DisconnectIneligible, have their external
// correlation id cleared so they drop out of the series while remaining
// individually intact.
type CancelOptions struct {
	Strict               bool
	DisconnectIneligible bool
}

// Deps carries the orchestrator's collaborators. Appointments, WorkOrders and
// Locker are optional; IDGenerator and Now default to uuid generation and the
// wall clock.
type Deps struct {
	Reservations persistence.ReservationRepository
	Checker      *availability.Checker
	Appointments calendar.AppointmentService
	WorkOrders   calendar.WorkOrderService
	Locker       lock.Locker
	Engine       config.Engine
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// Orchestrator coordinates reservation state, availability verdicts and the
// external calendar across series-level operations.
type Orchestrator struct {
	reservations persistence.ReservationRepository
	checker      *availability.Checker
	appointments calendar.AppointmentService
	workOrders   calendar.WorkOrderService
	locker       lock.Locker
	cfg          config.Engine
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewOrchestrator wires dependencies for series operations.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.IDGenerator == nil {
		deps.IDGenerator = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = lock.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{
		reservations: deps.Reservations,
		checker:      deps.Checker,
		appointments: deps.Appointments,
		workOrders:   deps.WorkOrders,
		locker:       deps.Locker,
		cfg:          deps.Engine,
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		logger:       deps.Logger,
	}
}

// SaveSeries creates a recurring series from a reservation template and a
// recurrence pattern.
//
// The anchor occurrence must save cleanly or the whole operation fails. Every
// repeat is then attempted independently: a conflicting or unsaveable repeat
// is recorded as a failure and the walk continues. This best-effort shape is
// a deliberate asymmetry from strict cancellation.
func (o *Orchestrator) SaveSeries(ctx context.Context, principal Principal, template reservation.Reservation, pattern recurrence.Pattern) (Result, error) {
	logger := logging.ForOperation(ctx, o.logger, "series", "SaveSeries")

	if template.OwnerID == "" {
		template.OwnerID = principal.UserID
	}
	if template.OwnerID != principal.UserID && !principal.IsAdmin {
		return Result{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if err := template.Period.Validate(); err != nil {
		vErr.add("period", err.Error())
	}
	repeats, err := pattern.Repeats(o.limits())
	if err != nil {
		vErr.add("recurrence", err.Error())
	}
	if vErr.HasErrors() {
		return Result{}, vErr
	}

	// A correlation id the caller supplies must not already own records;
	// orphans from an earlier partial run would silently merge into the new
	// series.
	if template.CorrelationID != "" {
		orphans, err := o.reservations.ListByCorrelationID(ctx, template.CorrelationID)
		if err != nil {
			return Result{}, fmt.Errorf("series: orphan check: %w", err)
		}
		if len(orphans) > 0 {
			return Result{}, &ConsistencyError{
				ReservationID: orphans[0].ID,
				Reason:        fmt.Sprintf("correlation id %s already owns %d reservation(s)", template.CorrelationID, len(orphans)),
			}
		}
	}

	now := o.now()
	anchor := template
	anchor.RuleText = recurrence.Encode(pattern)
	if anchor.Status == reservation.StatusNone {
		anchor.Status = reservation.StatusAwaitingApproval
	}
	if anchor.ID == "" {
		anchor.ID = o.idGenerator()
	}
	anchor.ParentID = anchor.ID
	anchor.CreatedAt, anchor.UpdatedAt = now, now

	anchor.Allocations = nil
	for _, a := range template.Allocations {
		clone := a.Clone()
		if clone.ID == "" {
			clone.ID = o.idGenerator()
		}
		anchor.AddAllocation(clone)
	}

	release, err := o.acquireLock(ctx, anchor.ID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if err := o.checker.CheckConflicts(ctx, &anchor, nil); err != nil {
		return Result{}, err
	}
	if err := o.reservations.SaveReservation(ctx, toStored(anchor)); err != nil {
		return Result{}, fmt.Errorf("series: save anchor: %w", err)
	}

	result := Result{Anchor: anchor.ID, Succeeded: []string{anchor.ID}}
	created := []reservation.Reservation{anchor}

	repeats.Walk(func(date time.Time) bool {
		occ := anchor.CloneForDate(date)
		occ.ID = o.idGenerator()
		for i := range occ.Allocations {
			occ.Allocations[i].ID = o.idGenerator()
		}
		occ.CreatedAt, occ.UpdatedAt = now, now

		if err := o.checker.CheckConflicts(ctx, &occ, nil); err != nil {
			result.Failures = append(result.Failures, OccurrenceFailure{Date: date, Err: err})
			return true
		}
		if err := o.reservations.SaveReservation(ctx, toStored(occ)); err != nil {
			result.Failures = append(result.Failures, OccurrenceFailure{Date: date, Err: err})
			return true
		}
		result.Succeeded = append(result.Succeeded, occ.ID)
		created = append(created, occ)
		return true
	})

	o.syncSeriesToCalendar(ctx, &result, created, logger)

	logger.Info("series created",
		"anchor_id", anchor.ID, "created", len(result.Succeeded), "failed", len(result.Failures))
	return result, nil
}

// SaveSingleOccurrence books one standalone reservation. Unlike series
// repeats, a conflict here fails the call outright.
func (o *Orchestrator) SaveSingleOccurrence(ctx context.Context, principal Principal, res reservation.Reservation) (reservation.Reservation, []string, error) {
	logger := logging.ForOperation(ctx, o.logger, "series", "SaveSingleOccurrence")

	if res.OwnerID == "" {
		res.OwnerID = principal.UserID
	}
	if res.OwnerID != principal.UserID && !principal.IsAdmin {
		return reservation.Reservation{}, nil, ErrUnauthorized
	}
	if err := res.Period.Validate(); err != nil {
		vErr := &ValidationError{}
		vErr.add("period", err.Error())
		return reservation.Reservation{}, nil, vErr
	}

	now := o.now()
	if res.Status == reservation.StatusNone {
		res.Status = reservation.StatusAwaitingApproval
	}
	if res.ID == "" {
		res.ID = o.idGenerator()
	}
	res.CreatedAt, res.UpdatedAt = now, now

	source := res.Allocations
	res.Allocations = nil
	for _, a := range source {
		clone := a.Clone()
		if clone.ID == "" {
			clone.ID = o.idGenerator()
		}
		res.AddAllocation(clone)
	}

	if err := o.checker.CheckConflicts(ctx, &res, nil); err != nil {
		return reservation.Reservation{}, nil, err
	}
	if err := o.reservations.SaveReservation(ctx, toStored(res)); err != nil {
		return reservation.Reservation{}, nil, fmt.Errorf("series: save reservation: %w", err)
	}

	var warnings []string
	if o.appointments != nil && res.CorrelationID == "" {
		corrID, err := o.appointments.CreateAppointment(ctx, o.appointment(res))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("calendar sync failed: %v", err))
			logger.Warn("calendar sync failed after save", "reservation_id", res.ID, "error", err)
		} else {
			res.CorrelationID = corrID
			res.UpdatedAt = o.now()
			if err := o.reservations.UpdateReservation(ctx, toStored(res)); err != nil {
				warnings = append(warnings, fmt.Sprintf("correlation id not persisted: %v", err))
			}
		}
	}
	return res, warnings, nil
}

// CancelSeries cancels every occurrence linked under the series containing
// the given reservation, which may be the anchor or any occurrence.
func (o *Orchestrator) CancelSeries(ctx context.Context, principal Principal, id string, opts CancelOptions) (Result, error) {
	logger := logging.ForOperation(ctx, o.logger, "series", "CancelSeries")

	seed, err := o.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	parentID := seed.ParentID
	if parentID == "" {
		parentID = seed.ID
	}

	release, err := o.acquireLock(ctx, parentID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	stored, err := o.reservations.ListByParentID(ctx, parentID)
	if err != nil {
		return Result{}, fmt.Errorf("series: list occurrences: %w", err)
	}
	occurrences := fromStoredAll(stored)
	if len(occurrences) == 0 {
		occurrences = []reservation.Reservation{seed}
	}

	result := Result{Anchor: parentID}

	if opts.Strict {
		// First pass checks eligibility with zero mutation; any failure
		// aborts the whole cancellation.
		for i := range occurrences {
			occ := &occurrences[i]
			if occ.Status.Terminal() {
				continue
			}
			if !o.canModify(principal, occ) {
				result.Failures = append(result.Failures, OccurrenceFailure{
					ReservationID: occ.ID, Date: occ.Period.StartDate, Err: ErrUnauthorized,
				})
			}
		}
		if len(result.Failures) > 0 {
			logger.Info("strict cancellation aborted", "anchor_id", parentID, "ineligible", len(result.Failures))
			return result, nil
		}
	}

	var correlationID string
	for i := range occurrences {
		occ := &occurrences[i]
		if occ.Status.Terminal() {
			continue
		}
		if !o.canModify(principal, occ) {
			if opts.DisconnectIneligible {
				occ.CorrelationID = ""
				occ.UpdatedAt = o.now()
				if err := o.reservations.UpdateReservation(ctx, toStored(*occ)); err != nil {
					result.Failures = append(result.Failures, OccurrenceFailure{ReservationID: occ.ID, Date: occ.Period.StartDate, Err: err})
				} else {
					result.Disconnected = append(result.Disconnected, occ.ID)
				}
			} else {
				result.Failures = append(result.Failures, OccurrenceFailure{
					ReservationID: occ.ID, Date: occ.Period.StartDate, Err: ErrUnauthorized,
				})
			}
			continue
		}

		if occ.CorrelationID != "" {
			correlationID = occ.CorrelationID
		}
		o.markCancelled(occ)
		if err := o.reservations.UpdateReservation(ctx, toStored(*occ)); err != nil {
			result.Failures = append(result.Failures, OccurrenceFailure{ReservationID: occ.ID, Date: occ.Period.StartDate, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, occ.ID)
	}

	if correlationID != "" && o.appointments != nil && len(result.Succeeded) > 0 {
		if err := o.appointments.CancelAppointment(ctx, correlationID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("calendar cancel failed: %v", err))
			logger.Warn("calendar cancel failed", "correlation_id", correlationID, "error", err)
		}
	}

	logger.Info("series cancelled",
		"anchor_id", parentID, "cancelled", len(result.Succeeded),
		"disconnected", len(result.Disconnected), "failed", len(result.Failures))
	return result, nil
}

// CancelSingleOccurrence cancels one occurrence. Cancelling a record that is
// already cancelled or rejected is a consistency violation, not a no-op.
func (o *Orchestrator) CancelSingleOccurrence(ctx context.Context, principal Principal, id string) ([]string, error) {
	logger := logging.ForOperation(ctx, o.logger, "series", "CancelSingleOccurrence")

	occ, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.canModify(principal, &occ) {
		return nil, ErrUnauthorized
	}
	if occ.Status.Terminal() {
		return nil, &ConsistencyError{ReservationID: occ.ID, Reason: "reservation is already cancelled or rejected"}
	}

	o.markCancelled(&occ)
	if err := o.reservations.UpdateReservation(ctx, toStored(occ)); err != nil {
		return nil, fmt.Errorf("series: cancel occurrence: %w", err)
	}

	var warnings []string
	if occ.CorrelationID != "" && o.appointments != nil {
		if err := o.appointments.CancelAppointmentOccurrence(ctx, occ.CorrelationID, occ.Period.StartDate); err != nil {
			warnings = append(warnings, fmt.Sprintf("calendar cancel failed: %v", err))
			logger.Warn("calendar occurrence cancel failed", "reservation_id", occ.ID, "error", err)
		}
	}
	return warnings, nil
}

// UpdateOccurrence edits one occurrence in place: title, attendees, time of
// day, allocations, and optionally its date. A date move within a series must
// land strictly between the surviving adjacent occurrences; crossing either
// is a consistency violation, never a silent reorder.
func (o *Orchestrator) UpdateOccurrence(ctx context.Context, principal Principal, updated reservation.Reservation) ([]string, error) {
	logger := logging.ForOperation(ctx, o.logger, "series", "UpdateOccurrence")

	existing, err := o.load(ctx, updated.ID)
	if err != nil {
		return nil, err
	}
	if !o.canModify(principal, &existing) {
		return nil, ErrUnauthorized
	}
	if existing.Status.Terminal() {
		return nil, &ConsistencyError{ReservationID: existing.ID, Reason: "cannot edit a cancelled or rejected reservation"}
	}
	if err := updated.Period.Validate(); err != nil {
		vErr := &ValidationError{}
		vErr.add("period", err.Error())
		return nil, vErr
	}

	newDate := timeperiod.DateOnly(updated.Period.StartDate)
	dateChanged := !newDate.Equal(existing.Period.StartDate)
	if dateChanged && existing.InSeries() {
		if err := o.checkDateShift(ctx, existing, newDate); err != nil {
			return nil, err
		}
	}

	merged := existing
	if updated.Title != "" {
		merged.Title = updated.Title
	}
	if updated.Attendees != nil {
		merged.Attendees = append([]string(nil), updated.Attendees...)
	}
	merged.Period.SetTimes(updated.Period.StartTime, updated.Period.EndTime)
	if updated.Period.TimezoneID != "" {
		merged.Period.TimezoneID = updated.Period.TimezoneID
	}
	if dateChanged {
		merged.Period.Retarget(newDate)
	}

	source := merged.Allocations
	if len(updated.Allocations) > 0 {
		source = updated.Allocations
	}
	merged.Allocations = nil
	for _, a := range source {
		clone := a.Clone()
		if clone.ID == "" {
			clone.ID = o.idGenerator()
		}
		clone.Period.Retarget(merged.Period.StartDate)
		merged.AddAllocation(clone)
	}

	if err := o.checker.CheckConflicts(ctx, &merged, []string{merged.ID}); err != nil {
		return nil, err
	}

	merged.UpdatedAt = o.now()
	if err := o.reservations.UpdateReservation(ctx, toStored(merged)); err != nil {
		return nil, fmt.Errorf("series: update occurrence: %w", err)
	}

	var warnings []string
	if merged.CorrelationID != "" && o.appointments != nil {
		if err := o.appointments.UpdateAppointmentOccurrence(ctx, merged.CorrelationID, o.appointment(merged)); err != nil {
			warnings = append(warnings, fmt.Sprintf("calendar update failed: %v", err))
			logger.Warn("calendar occurrence update failed", "reservation_id", merged.ID, "error", err)
		}
	}
	return warnings, nil
}

// UpdateSeries reshapes a whole series to a new pattern and template.
// Surviving occurrences are updated pairwise onto the new dates in order;
// extra dates create fresh occurrences and surplus occurrences are cancelled.
// Per-occurrence conflicts land on the failure list, the rest proceeds.
func (o *Orchestrator) UpdateSeries(ctx context.Context, principal Principal, anchorID string, template reservation.Reservation, pattern recurrence.Pattern) (Result, error) {
	logger := logging.ForOperation(ctx, o.logger, "series", "UpdateSeries")

	dates, err := pattern.Dates(o.limits())
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("recurrence", err.Error())
		return Result{}, vErr
	}

	release, err := o.acquireLock(ctx, anchorID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	stored, err := o.reservations.ListByParentID(ctx, anchorID)
	if err != nil {
		return Result{}, fmt.Errorf("series: list occurrences: %w", err)
	}
	if len(stored) == 0 {
		return Result{}, ErrNotFound
	}

	surviving := make([]reservation.Reservation, 0, len(stored))
	for _, s := range fromStoredAll(stored) {
		if !s.Status.Terminal() {
			surviving = append(surviving, s)
		}
	}
	if len(surviving) == 0 {
		return Result{}, &ConsistencyError{ReservationID: anchorID, Reason: "series has no surviving occurrences"}
	}
	if !o.canModify(principal, &surviving[0]) {
		return Result{}, ErrUnauthorized
	}

	exceptIDs := make([]string, 0, len(surviving))
	for i := range surviving {
		exceptIDs = append(exceptIDs, surviving[i].ID)
	}

	result := Result{Anchor: anchorID}
	now := o.now()
	ruleText := recurrence.Encode(pattern)

	paired := len(surviving)
	if len(dates) < paired {
		paired = len(dates)
	}

	for i := 0; i < paired; i++ {
		occ := surviving[i]
		occ.Period.Retarget(dates[i])
		occ.Period.SetTimes(template.Period.StartTime, template.Period.EndTime)
		if template.Period.TimezoneID != "" {
			occ.Period.TimezoneID = template.Period.TimezoneID
		}
		if template.Title != "" {
			occ.Title = template.Title
		}
		occ.RuleText = ruleText

		source := occ.Allocations
		if len(template.Allocations) > 0 {
			source = template.Allocations
		}
		occ.Allocations = nil
		for _, a := range source {
			clone := a.Clone()
			if clone.ID == "" {
				clone.ID = o.idGenerator()
			}
			clone.Period.Retarget(occ.Period.StartDate)
			occ.AddAllocation(clone)
		}
		occ.UpdatedAt = now

		if err := o.checker.CheckConflicts(ctx, &occ, exceptIDs); err != nil {
			result.Failures = append(result.Failures, OccurrenceFailure{ReservationID: occ.ID, Date: dates[i], Err: err})
			continue
		}
		if err := o.reservations.UpdateReservation(ctx, toStored(occ)); err != nil {
			result.Failures = append(result.Failures, OccurrenceFailure{ReservationID: occ.ID, Date: dates[i], Err: err})
			continue
		}
		surviving[i] = occ
		result.Succeeded = append(result.Succeeded, occ.ID)
	}

	// New dates past the existing occurrence count become fresh records.
	for _, date := range dates[paired:] {
		occ := surviving[0].CloneForDate(date)
		occ.ID = o.idGenerator()
		for i := range occ.Allocations {
			occ.Allocations[i].ID = o.idGenerator()
		}
		occ.CreatedAt, occ.UpdatedAt = now, now

		if err := o.checker.CheckConflicts(ctx, &occ, exceptIDs); err != nil {
			result.Failures = append(result.Failures, OccurrenceFailure{Date: date, Err: err})
			continue
		}
		if err := o.reservations.SaveReservation(ctx, toStored(occ)); err != nil {
			result.Failures = append(result.Failures, OccurrenceFailure{Date: date, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, occ.ID)
	}

	// Occurrences the shorter pattern no longer covers are cancelled.
	for i := len(dates); i < len(surviving); i++ {
		occ := surviving[i]
		o.markCancelled(&occ)
		if err := o.reservations.UpdateReservation(ctx, toStored(occ)); err != nil {
			result.Failures = append(result.Failures, OccurrenceFailure{ReservationID: occ.ID, Date: occ.Period.StartDate, Err: err})
		}
	}

	if surviving[0].CorrelationID != "" && o.appointments != nil {
		appt := o.appointment(surviving[0])
		appt.CorrelationID = surviving[0].CorrelationID
		appt.RuleText = ruleText
		if err := o.appointments.UpdateAppointment(ctx, appt); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("calendar update failed: %v", err))
			logger.Warn("calendar series update failed", "anchor_id", anchorID, "error", err)
		}
	}

	logger.Info("series updated",
		"anchor_id", anchorID, "updated", len(result.Succeeded), "failed", len(result.Failures))
	return result, nil
}

// VerifyPatternConsistency reports whether every surviving occurrence stored
// under the correlation id still matches the given pattern and time of day.
// It detects drift after the external calendar edited the series directly.
func (o *Orchestrator) VerifyPatternConsistency(ctx context.Context, correlationID string, pattern recurrence.Pattern, startTime, endTime time.Time, timezoneID string) (bool, error) {
	dates, err := pattern.Dates(o.limits())
	if err != nil {
		return false, err
	}

	stored, err := o.reservations.ListByCorrelationID(ctx, correlationID)
	if err != nil {
		return false, fmt.Errorf("series: list by correlation: %w", err)
	}

	surviving := make([]reservation.Reservation, 0, len(stored))
	for _, s := range fromStoredAll(stored) {
		if !s.Status.Terminal() {
			surviving = append(surviving, s)
		}
	}
	if len(surviving) != len(dates) {
		return false, nil
	}

	wantStart := timeperiod.TimeOnly(startTime)
	wantEnd := timeperiod.TimeOnly(endTime)
	for i, occ := range surviving {
		if !occ.Period.StartDate.Equal(dates[i]) {
			return false, nil
		}
		if !occ.Period.StartTime.Equal(wantStart) || !occ.Period.EndTime.Equal(wantEnd) {
			return false, nil
		}
		if timezoneID != "" && occ.Period.TimezoneID != timezoneID {
			return false, nil
		}
	}
	return true, nil
}

// ScheduleSetupWork files a facilities work request around one reservation's
// window.
func (o *Orchestrator) ScheduleSetupWork(ctx context.Context, principal Principal, reservationID, description string) (string, error) {
	if o.workOrders == nil {
		return "", errors.New("series: no work-order service configured")
	}

	occ, err := o.load(ctx, reservationID)
	if err != nil {
		return "", err
	}
	if !o.canModify(principal, &occ) {
		return "", ErrUnauthorized
	}

	id, err := o.workOrders.CreateWorkRequest(ctx, calendar.WorkRequest{
		ReservationID: occ.ID,
		BuildingID:    occ.PrimaryBuildingID(),
		Description:   description,
		Window:        occ.Period,
	})
	if err != nil {
		return "", fmt.Errorf("series: create work request: %w", err)
	}
	return id, nil
}

// CancelSetupWork withdraws a previously filed work request.
func (o *Orchestrator) CancelSetupWork(ctx context.Context, workRequestID string) error {
	if o.workOrders == nil {
		return errors.New("series: no work-order service configured")
	}
	if err := o.workOrders.CancelWorkRequest(ctx, workRequestID); err != nil {
		return fmt.Errorf("series: cancel work request: %w", err)
	}
	return nil
}

// checkDateShift enforces the ordering guard for a date move within a series.
func (o *Orchestrator) checkDateShift(ctx context.Context, occ reservation.Reservation, newDate time.Time) error {
	stored, err := o.reservations.ListByParentID(ctx, occ.ParentID)
	if err != nil {
		return fmt.Errorf("series: list siblings: %w", err)
	}

	var prev, next *time.Time
	passed := false
	for _, sibling := range fromStoredAll(stored) {
		if sibling.ID == occ.ID {
			passed = true
			continue
		}
		if sibling.Status.Terminal() {
			continue
		}
		date := sibling.Period.StartDate
		if !passed {
			d := date
			prev = &d
		} else if next == nil {
			d := date
			next = &d
		}
	}

	if prev != nil && !newDate.After(*prev) {
		return &ConsistencyError{ReservationID: occ.ID, Reason: "occurrence cannot skip over another occurrence"}
	}
	if next != nil && !newDate.Before(*next) {
		return &ConsistencyError{ReservationID: occ.ID, Reason: "occurrence cannot skip over another occurrence"}
	}
	return nil
}

func (o *Orchestrator) syncSeriesToCalendar(ctx context.Context, result *Result, created []reservation.Reservation, logger *slog.Logger) {
	if o.appointments == nil || len(created) == 0 || created[0].CorrelationID != "" {
		return
	}

	anchor := created[0]
	corrID, err := o.appointments.CreateAppointment(ctx, o.appointment(anchor))
	if err != nil {
		// The reservations are already durable; calendar trouble is a
		// warning, never a failure of the series itself.
		result.Warnings = append(result.Warnings, fmt.Sprintf("calendar sync failed: %v", err))
		logger.Warn("calendar sync failed after series save", "anchor_id", anchor.ID, "error", err)
		return
	}

	for i := range created {
		created[i].CorrelationID = corrID
		created[i].UpdatedAt = o.now()
		if err := o.reservations.UpdateReservation(ctx, toStored(created[i])); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("correlation id not persisted on %s: %v", created[i].ID, err))
		}
	}
}

func (o *Orchestrator) appointment(r reservation.Reservation) calendar.Appointment {
	return calendar.Appointment{
		CorrelationID: r.CorrelationID,
		Subject:       r.Title,
		Location:      r.PrimaryBuildingID(),
		Attendees:     append([]string(nil), r.Attendees...),
		Window:        r.Period,
		RuleText:      r.RuleText,
	}
}

func (o *Orchestrator) load(ctx context.Context, id string) (reservation.Reservation, error) {
	stored, err := o.reservations.GetReservation(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return reservation.Reservation{}, ErrNotFound
	}
	if err != nil {
		return reservation.Reservation{}, fmt.Errorf("series: load reservation %s: %w", id, err)
	}
	return fromStored(stored), nil
}

func (o *Orchestrator) canModify(principal Principal, r *reservation.Reservation) bool {
	return principal.IsAdmin || (principal.UserID != "" && principal.UserID == r.OwnerID)
}

func (o *Orchestrator) markCancelled(r *reservation.Reservation) {
	r.Status = reservation.StatusCancelled
	for i := range r.Allocations {
		r.Allocations[i].Status = reservation.StatusCancelled
	}
	r.UpdatedAt = o.now()
}

func (o *Orchestrator) limits() recurrence.Limits {
	return recurrence.Limits{MaxOccurrences: o.cfg.MaxOccurrences}
}

func (o *Orchestrator) acquireLock(ctx context.Context, key string) (func(), error) {
	ttl := o.cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	ok, err := o.locker.Lock(ctx, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("series: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		if err := o.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			o.logger.Warn("series lock release failed", "key", key, "error", err)
		}
	}, nil
}
