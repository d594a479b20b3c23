// Package availability answers "which rooms or resources are free for this
// window" across single occurrences and whole recurring series. All overlap
// comparisons happen in the timezone of the building that owns the candidate,
// and a series verdict is the intersection of the per-occurrence verdicts.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/example/reservation-engine/internal/calendar"
	"github.com/example/reservation-engine/internal/config"
	"github.com/example/reservation-engine/internal/logging"
	"github.com/example/reservation-engine/internal/persistence"
	"github.com/example/reservation-engine/internal/recurrence"
	"github.com/example/reservation-engine/internal/reservation"
	"github.com/example/reservation-engine/internal/timeperiod"
	"github.com/example/reservation-engine/internal/timezone"
)

// ConflictError reports the first booked target that blocks a reservation.
type ConflictError struct {
	TargetID string
	Date     time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("availability: %s is booked on %s", e.TargetID, e.Date.Format(time.DateOnly))
}

// activeStatuses are the reservation states that hold a slot. Rejected and
// cancelled bookings release it.
var activeStatuses = []string{
	string(reservation.StatusAwaitingApproval),
	string(reservation.StatusConfirmed),
}

// Checker resolves free rooms and resources against stored reservations and
// attendee calendars.
type Checker struct {
	reservations persistence.ReservationRepository
	resources    persistence.ResourceRepository
	appointments calendar.AppointmentService
	converter    *timezone.Converter

	freeBusyCache *gocache.Cache
	limiter       *rate.Limiter
	cfg           config.Engine
	logger        *slog.Logger
}

// NewChecker wires a checker. The appointment service may be nil when no
// external calendar is configured; attendee checks then report everyone free.
func NewChecker(
	reservations persistence.ReservationRepository,
	resources persistence.ResourceRepository,
	appointments calendar.AppointmentService,
	converter *timezone.Converter,
	cfg config.Engine,
	logger *slog.Logger,
) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	perSecond := cfg.FreeBusyPerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	ttl := cfg.FreeBusyCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Checker{
		reservations:  reservations,
		resources:     resources,
		appointments:  appointments,
		converter:     converter,
		freeBusyCache: gocache.New(ttl, 2*ttl),
		limiter:       rate.NewLimiter(rate.Limit(perSecond), 1),
		cfg:           cfg,
		logger:        logger,
	}
}

// FindAvailable returns the rooms or resources of the given kind free during
// one window. Reservations named in exceptIDs are ignored so an edit never
// conflicts with the record being edited.
func (c *Checker) FindAvailable(ctx context.Context, kind reservation.Kind, window timeperiod.TimePeriod, exceptIDs []string) ([]persistence.Resource, error) {
	free, err := c.freeOn(ctx, kind, window, exceptIDs)
	if err != nil {
		return nil, err
	}
	return sortedResources(free), nil
}

// FindAvailableAcrossSeries returns the targets free on the anchor window and
// on every repeat date the walker produces. The verdict is a strict
// intersection: a target busy on any single occurrence is excluded even when
// it is free on all the others.
func (c *Checker) FindAvailableAcrossSeries(ctx context.Context, kind reservation.Kind, window timeperiod.TimePeriod, repeats *recurrence.Walker, exceptIDs []string) ([]persistence.Resource, error) {
	logger := logging.ForOperation(ctx, c.logger, "availability", "FindAvailableAcrossSeries")

	free, err := c.freeOn(ctx, kind, window, exceptIDs)
	if err != nil {
		return nil, err
	}

	occurrence := window.Clone()
	for {
		date, ok := repeats.Next()
		if !ok {
			break
		}
		occurrence.Retarget(date)

		freeOnDate, err := c.freeOn(ctx, kind, occurrence, exceptIDs)
		if err != nil {
			return nil, err
		}
		for id := range free {
			if _, stillFree := freeOnDate[id]; !stillFree {
				delete(free, id)
			}
		}
	}

	logger.Debug("series availability resolved", "kind", kind, "free", len(free))
	return sortedResources(free), nil
}

// FindAvailableForOccurrences intersects availability over an existing set of
// occurrence records, re-pointing the candidate window at each occurrence's
// own date. Each occurrence excludes itself from the conflict scan, so a
// series edit is never blocked by the records it is replacing.
func (c *Checker) FindAvailableForOccurrences(ctx context.Context, kind reservation.Kind, window timeperiod.TimePeriod, occurrences []reservation.Reservation) ([]persistence.Resource, error) {
	if len(occurrences) == 0 {
		return c.FindAvailable(ctx, kind, window, nil)
	}

	exceptIDs := make([]string, 0, len(occurrences))
	for i := range occurrences {
		exceptIDs = append(exceptIDs, occurrences[i].ID)
	}

	var free map[string]persistence.Resource
	candidate := window.Clone()
	for i := range occurrences {
		candidate.Retarget(occurrences[i].Period.StartDate)

		freeOnDate, err := c.freeOn(ctx, kind, candidate, exceptIDs)
		if err != nil {
			return nil, err
		}
		if free == nil {
			free = freeOnDate
			continue
		}
		for id := range free {
			if _, stillFree := freeOnDate[id]; !stillFree {
				delete(free, id)
			}
		}
	}
	return sortedResources(free), nil
}

// CheckConflicts verifies that every allocation of the reservation is free for
// the reservation's window. The first busy target aborts the check with a
// ConflictError.
func (c *Checker) CheckConflicts(ctx context.Context, res *reservation.Reservation, exceptIDs []string) error {
	for _, alloc := range res.Allocations {
		busy, err := c.targetBusy(ctx, res.Kind, alloc, exceptIDs)
		if err != nil {
			return err
		}
		if busy {
			return &ConflictError{TargetID: alloc.TargetID(), Date: alloc.Period.StartDate}
		}
	}
	return nil
}

// CheckAttendeeAvailability reports which attendees have a busy calendar
// window colliding with any of the given occurrence windows. The number of
// occurrences consulted is capped; windows past the ceiling are skipped and
// reported via the second return value so callers can surface the partial
// verdict.
func (c *Checker) CheckAttendeeAvailability(ctx context.Context, attendees []string, windows []timeperiod.TimePeriod) (conflicted []string, truncated bool, err error) {
	if c.appointments == nil || len(attendees) == 0 || len(windows) == 0 {
		return nil, false, nil
	}
	logger := logging.ForOperation(ctx, c.logger, "availability", "CheckAttendeeAvailability")

	maxChecks := c.cfg.MaxFreeBusyChecks
	if maxChecks <= 0 {
		maxChecks = 25
	}
	if len(windows) > maxChecks {
		logger.Warn("free-busy check truncated", "windows", len(windows), "limit", maxChecks)
		windows = windows[:maxChecks]
		truncated = true
	}

	busyBy := make(map[string]bool)
	for _, window := range windows {
		availabilities, err := c.attendeeAvailability(ctx, attendees, window)
		if err != nil {
			return nil, truncated, err
		}
		for _, avail := range availabilities {
			for _, busy := range avail.Busy {
				if busy.Overlaps(window) {
					busyBy[avail.Attendee] = true
					break
				}
			}
		}
	}

	for _, attendee := range attendees {
		if busyBy[attendee] {
			conflicted = append(conflicted, attendee)
		}
	}
	return conflicted, truncated, nil
}

// attendeeAvailability fetches free-busy data through the cache and the rate
// limiter.
func (c *Checker) attendeeAvailability(ctx context.Context, attendees []string, window timeperiod.TimePeriod) ([]calendar.AttendeeAvailability, error) {
	key := freeBusyKey(attendees, window)
	if cached, ok := c.freeBusyCache.Get(key); ok {
		return cached.([]calendar.AttendeeAvailability), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("availability: free-busy rate wait: %w", err)
	}

	availabilities, err := c.appointments.FindAttendeeAvailability(ctx, attendees, window)
	if err != nil {
		return nil, fmt.Errorf("availability: free-busy lookup: %w", err)
	}

	c.freeBusyCache.SetDefault(key, availabilities)
	return availabilities, nil
}

// freeOn computes the set of free targets of one kind for a single-day window,
// keyed by target id.
func (c *Checker) freeOn(ctx context.Context, kind reservation.Kind, window timeperiod.TimePeriod, exceptIDs []string) (map[string]persistence.Resource, error) {
	catalog, err := c.resources.ListResources(ctx, string(kind))
	if err != nil {
		return nil, fmt.Errorf("availability: list resources: %w", err)
	}

	free := make(map[string]persistence.Resource, len(catalog))
	for _, entry := range catalog {
		free[entry.ID] = entry
	}

	booked, err := c.bookedTargets(ctx, kind, window, exceptIDs)
	if err != nil {
		return nil, err
	}
	for id := range booked {
		delete(free, id)
	}
	return free, nil
}

// targetBusy reports whether one allocation's target is already booked during
// the allocation's window.
func (c *Checker) targetBusy(ctx context.Context, kind reservation.Kind, alloc reservation.Allocation, exceptIDs []string) (bool, error) {
	booked, err := c.bookedTargets(ctx, kind, alloc.Period, exceptIDs)
	if err != nil {
		return false, err
	}
	return booked[alloc.TargetID()], nil
}

// bookedTargets scans active reservations on the window's day and returns the
// target ids whose stored allocation windows overlap the candidate window.
// Both windows are converted to the owning building's local time before
// comparison so bookings entered in different zones collide correctly.
func (c *Checker) bookedTargets(ctx context.Context, kind reservation.Kind, window timeperiod.TimePeriod, exceptIDs []string) (map[string]bool, error) {
	existing, err := c.reservations.ListOverlapping(ctx, persistence.OverlapFilter{
		Kind:      string(kind),
		Date:      window.StartDate.Format(time.DateOnly),
		Statuses:  activeStatuses,
		ExceptIDs: exceptIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("availability: list overlapping: %w", err)
	}

	booked := make(map[string]bool)
	for i := range existing {
		for _, stored := range existing[i].Allocations {
			if stored.Status != string(reservation.StatusAwaitingApproval) &&
				stored.Status != string(reservation.StatusConfirmed) {
				continue
			}

			storedWindow := timeperiod.TimePeriod{
				StartDate:  stored.StartDate,
				EndDate:    stored.EndDate,
				StartTime:  stored.StartTime,
				EndTime:    stored.EndTime,
				TimezoneID: stored.TimezoneID,
			}

			candidate := window
			if c.converter != nil {
				candidate, _ = c.converter.ToBuildingLocal(ctx, window, stored.BuildingID)
				storedWindow, _ = c.converter.ToBuildingLocal(ctx, storedWindow, stored.BuildingID)
			}

			if storedWindow.Overlaps(candidate) {
				target := stored.RoomID
				if stored.ResourceID != "" {
					target = stored.ResourceID
				}
				booked[target] = true
			}
		}
	}
	return booked, nil
}

func sortedResources(free map[string]persistence.Resource) []persistence.Resource {
	out := make([]persistence.Resource, 0, len(free))
	for _, entry := range free {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func freeBusyKey(attendees []string, window timeperiod.TimePeriod) string {
	sorted := append([]string(nil), attendees...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",") + "|" + window.Start().Format(time.RFC3339) + "|" + window.End().Format(time.RFC3339)
}
