package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/reservation-engine/internal/reservation"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func useTempDatabase(t *testing.T) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "reservations.db")
	t.Setenv("RESERVE_SQLITE_DSN", dsn)
}

func TestExpandCommand(t *testing.T) {
	out, err := runCommand(t,
		"expand",
		"--rule", "type=week;interval=1;days=0100000;total=3",
		"--start", "2024-01-01")
	require.NoError(t, err)

	assert.Contains(t, out, "2024-01-01")
	assert.Contains(t, out, "2024-01-08")
	assert.Contains(t, out, "2024-01-15")
	assert.Contains(t, out, "3 occurrence(s)")
}

func TestExpandCommand_BadRule(t *testing.T) {
	_, err := runCommand(t, "expand", "--rule", "nonsense", "--start", "2024-01-01")
	require.Error(t, err)
}

func TestUpgradeRuleCommand(t *testing.T) {
	out, err := runCommand(t,
		"upgrade-rule",
		"--legacy", `{"total":4,"week":{"interval":2,"monday":true,"friday":true}}`)
	require.NoError(t, err)
	assert.Contains(t, out, "type=week;interval=2;days=0100010;total=4")
}

func TestBookAndCancel(t *testing.T) {
	useTempDatabase(t)

	out, err := runCommand(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema applied")

	out, err = runCommand(t,
		"book",
		"--owner", "user-1",
		"--title", "Standup",
		"--building", "bld-1",
		"--room", "room-1",
		"--date", "2024-01-01",
		"--from", "09:00",
		"--to", "09:30",
		"--rule", "type=week;interval=1;days=0100000;total=2")
	require.NoError(t, err)
	assert.Contains(t, out, "2 occurrence(s) booked")

	// Second series in the same room and window must be refused outright.
	_, err = runCommand(t,
		"book",
		"--owner", "user-2",
		"--room", "room-1",
		"--building", "bld-1",
		"--date", "2024-01-01",
		"--from", "09:00",
		"--to", "09:30")
	require.Error(t, err)

	// A different owner gets per-occurrence failures, not cancellations.
	seriesID := extractSeriesID(t, out)
	intruderOut, err := runCommand(t, "cancel", "--owner", "user-2", "--series", seriesID)
	require.NoError(t, err)
	assert.Contains(t, intruderOut, "cancelled 0 occurrence(s)")
	assert.Contains(t, intruderOut, "not cancelled")

	out, err = runCommand(t, "cancel", "--owner", "user-1", "--series", seriesID)
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled 2 occurrence(s)")
}

// extractSeriesID pulls the anchor id out of "series <id>: N occurrence(s)
// booked".
func extractSeriesID(t *testing.T, bookOutput string) string {
	t.Helper()
	_, after, found := strings.Cut(bookOutput, "series ")
	require.True(t, found, "book output missing series id: %q", bookOutput)
	id, _, found := strings.Cut(after, ":")
	require.True(t, found, "book output missing series id: %q", bookOutput)
	return strings.TrimSpace(id)
}

func TestBuildTemplate(t *testing.T) {
	template, err := buildTemplate("user-1", "Review", "bld-1", "room-1",
		"2024-03-04", "14:00", "15:30", "Asia/Tokyo")
	require.NoError(t, err)

	assert.Equal(t, reservation.KindRoom, template.Kind)
	assert.Equal(t, "user-1", template.OwnerID)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), template.Period.StartDate)
	assert.Equal(t, 14, template.Period.StartTime.Hour())
	assert.Equal(t, 30, template.Period.EndTime.Minute())
	assert.Equal(t, "Asia/Tokyo", template.Period.TimezoneID)
	require.Len(t, template.Allocations, 1)
	assert.Equal(t, "room-1", template.Allocations[0].RoomID)
}

func TestBuildTemplate_BadInput(t *testing.T) {
	_, err := buildTemplate("user-1", "", "bld-1", "room-1", "01/02/2024", "09:00", "10:00", "UTC")
	assert.Error(t, err)

	_, err = buildTemplate("user-1", "", "bld-1", "room-1", "2024-01-01", "9am", "10:00", "UTC")
	assert.Error(t, err)

	// End before start violates the period ordering.
	_, err = buildTemplate("user-1", "", "bld-1", "room-1", "2024-01-01", "11:00", "10:00", "UTC")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	clock, err := parseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, clock.Hour())
	assert.Equal(t, 30, clock.Minute())

	clock, err = parseClock("09:30:15")
	require.NoError(t, err)
	assert.Equal(t, 15, clock.Second())

	_, err = parseClock("half past nine")
	assert.Error(t, err)
}
