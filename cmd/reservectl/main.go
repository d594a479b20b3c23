// Command reservectl operates the reservation engine from the command line:
// applying the schema, seeding the catalog, expanding and upgrading
// recurrence rules, and booking or cancelling series.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/reservation-engine/internal/availability"
	"github.com/example/reservation-engine/internal/calendar"
	"github.com/example/reservation-engine/internal/config"
	"github.com/example/reservation-engine/internal/lock"
	"github.com/example/reservation-engine/internal/persistence/sqlite"
	"github.com/example/reservation-engine/internal/recurrence"
	"github.com/example/reservation-engine/internal/reservation"
	"github.com/example/reservation-engine/internal/series"
	"github.com/example/reservation-engine/internal/timeperiod"
	"github.com/example/reservation-engine/internal/timezone"
)

var (
	successText = color.New(color.FgGreen).SprintFunc()
	warnText    = color.New(color.FgYellow).SprintFunc()
	failText    = color.New(color.FgRed).SprintFunc()
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failText(err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "reservectl",
		Short:         "Operate the recurring-reservation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newMigrateCommand(&configPath),
		newExpandCommand(&configPath),
		newUpgradeRuleCommand(),
		newBookCommand(&configPath),
		newCancelCommand(&configPath),
		newVerifyCommand(&configPath),
	)
	return root
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// engine bundles everything a command needs against one open store.
type engine struct {
	cfg    config.Config
	store  *sqlite.Store
	orch   *series.Orchestrator
	logger *slog.Logger
	close  func()
}

func openEngine(configPath string) (*engine, error) {
	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return nil, err
	}
	closers := []func(){func() { _ = store.Close() }}

	var locker lock.Locker = lock.Noop{}
	if cfg.RedisAddr != "" {
		redisLocker, err := lock.NewRedisLocker(cfg.RedisAddr)
		if err != nil {
			store.Close()
			return nil, err
		}
		locker = redisLocker
		closers = append(closers, func() { _ = redisLocker.Close() })
	}

	converter := timezone.NewConverter(store, logger)
	appointments := calendar.NoopAppointments{}
	checker := availability.NewChecker(store, store, appointments, converter, cfg.Engine, logger)
	orch := series.NewOrchestrator(series.Deps{
		Reservations: store,
		Checker:      checker,
		Appointments: appointments,
		WorkOrders:   calendar.NoopWorkOrders{},
		Locker:       locker,
		Engine:       cfg.Engine,
		Logger:       logger,
	})

	return &engine{
		cfg:    cfg,
		store:  store,
		orch:   orch,
		logger: logger,
		close: func() {
			for _, fn := range closers {
				fn()
			}
		},
	}, nil
}

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(*configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successText("schema applied"))
			return nil
		},
	}
}

func newExpandCommand(configPath *string) *cobra.Command {
	var (
		ruleText string
		startStr string
		endStr   string
	)

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Expand a recurrence rule into its occurrence dates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			pattern, err := recurrence.Parse(ruleText)
			if err != nil {
				return err
			}
			start, err := time.Parse(time.DateOnly, startStr)
			if err != nil {
				return fmt.Errorf("bad --start date %q: %w", startStr, err)
			}
			var end *time.Time
			if endStr != "" {
				parsed, err := time.Parse(time.DateOnly, endStr)
				if err != nil {
					return fmt.Errorf("bad --end date %q: %w", endStr, err)
				}
				end = &parsed
			}
			pattern.ApplyBounds(start, end, nil)

			dates, err := pattern.Dates(recurrence.Limits{MaxOccurrences: cfg.Engine.MaxOccurrences})
			if err != nil {
				return err
			}
			for _, date := range dates {
				fmt.Fprintln(cmd.OutOrStdout(), date.Format(time.DateOnly))
			}
			fmt.Fprintln(cmd.OutOrStdout(), successText(fmt.Sprintf("%d occurrence(s)", len(dates))))
			return nil
		},
	}
	cmd.Flags().StringVar(&ruleText, "rule", "", "structured recurrence rule, e.g. type=week;interval=1;days=0100000;total=4")
	cmd.Flags().StringVar(&startStr, "start", "", "series start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "optional series end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("rule")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newUpgradeRuleCommand() *cobra.Command {
	var legacyJSON string

	cmd := &cobra.Command{
		Use:   "upgrade-rule",
		Short: "Translate a legacy nested recurrence document to the structured rule form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			upgraded, err := recurrence.UpgradeLegacy(legacyJSON)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), upgraded)
			return nil
		},
	}
	cmd.Flags().StringVar(&legacyJSON, "legacy", "", "legacy recurrence JSON document")
	_ = cmd.MarkFlagRequired("legacy")
	return cmd
}

func newBookCommand(configPath *string) *cobra.Command {
	var (
		ownerID    string
		title      string
		buildingID string
		roomID     string
		dateStr    string
		startStr   string
		endStr     string
		zoneID     string
		ruleText   string
	)

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a room once or as a recurring series",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(*configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			template, err := buildTemplate(ownerID, title, buildingID, roomID, dateStr, startStr, endStr, zoneID)
			if err != nil {
				return err
			}
			principal := series.Principal{UserID: ownerID}
			out := cmd.OutOrStdout()

			if ruleText == "" {
				saved, warnings, err := eng.orch.SaveSingleOccurrence(cmd.Context(), principal, template)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, successText("booked "+saved.ID))
				printWarnings(out, warnings)
				return nil
			}

			pattern, err := recurrence.Parse(ruleText)
			if err != nil {
				return err
			}
			pattern.ApplyBounds(template.Period.StartDate, nil, nil)

			result, err := eng.orch.SaveSeries(cmd.Context(), principal, template, pattern)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, successText(fmt.Sprintf("series %s: %d occurrence(s) booked", result.Anchor, len(result.Succeeded))))
			for _, failure := range result.Failures {
				fmt.Fprintln(out, failText(fmt.Sprintf("skipped %s: %v", failure.Date.Format(time.DateOnly), failure.Err)))
			}
			printWarnings(out, result.Warnings)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "owning user id")
	cmd.Flags().StringVar(&title, "title", "", "reservation title")
	cmd.Flags().StringVar(&buildingID, "building", "", "building id")
	cmd.Flags().StringVar(&roomID, "room", "", "room id")
	cmd.Flags().StringVar(&dateStr, "date", "", "first occurrence date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&startStr, "from", "09:00", "start time of day (HH:MM)")
	cmd.Flags().StringVar(&endStr, "to", "10:00", "end time of day (HH:MM)")
	cmd.Flags().StringVar(&zoneID, "zone", "UTC", "timezone the clock values are expressed in")
	cmd.Flags().StringVar(&ruleText, "rule", "", "optional recurrence rule for a series")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newCancelCommand(configPath *string) *cobra.Command {
	var (
		ownerID    string
		admin      bool
		wholeRun   bool
		strict     bool
		disconnect bool
	)

	cmd := &cobra.Command{
		Use:   "cancel <reservation-id>",
		Short: "Cancel one occurrence or the whole series containing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(*configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			principal := series.Principal{UserID: ownerID, IsAdmin: admin}
			out := cmd.OutOrStdout()

			if !wholeRun {
				warnings, err := eng.orch.CancelSingleOccurrence(cmd.Context(), principal, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, successText("cancelled "+args[0]))
				printWarnings(out, warnings)
				return nil
			}

			result, err := eng.orch.CancelSeries(cmd.Context(), principal, args[0], series.CancelOptions{
				Strict:               strict,
				DisconnectIneligible: disconnect,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, successText(fmt.Sprintf("cancelled %d occurrence(s)", len(result.Succeeded))))
			for _, id := range result.Disconnected {
				fmt.Fprintln(out, warnText("disconnected "+id))
			}
			for _, failure := range result.Failures {
				fmt.Fprintln(out, failText(fmt.Sprintf("not cancelled %s: %v", failure.ReservationID, failure.Err)))
			}
			printWarnings(out, result.Warnings)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "acting user id")
	cmd.Flags().BoolVar(&admin, "admin", false, "act with admin rights")
	cmd.Flags().BoolVar(&wholeRun, "series", false, "cancel the whole series, not just this occurrence")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort the whole cancellation when any occurrence is ineligible")
	cmd.Flags().BoolVar(&disconnect, "disconnect", false, "disconnect ineligible occurrences instead of failing them")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newVerifyCommand(configPath *string) *cobra.Command {
	var (
		correlationID string
		ruleText      string
		dateStr       string
		startStr      string
		endStr        string
		zoneID        string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that stored occurrences still match a recurrence pattern",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := openEngine(*configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			pattern, err := recurrence.Parse(ruleText)
			if err != nil {
				return err
			}
			start, err := time.Parse(time.DateOnly, dateStr)
			if err != nil {
				return fmt.Errorf("bad --date %q: %w", dateStr, err)
			}
			pattern.ApplyBounds(start, nil, nil)

			startClock, err := parseClock(startStr)
			if err != nil {
				return err
			}
			endClock, err := parseClock(endStr)
			if err != nil {
				return err
			}

			consistent, err := eng.orch.VerifyPatternConsistency(cmd.Context(), correlationID, pattern, startClock, endClock, zoneID)
			if err != nil {
				return err
			}
			if consistent {
				fmt.Fprintln(cmd.OutOrStdout(), successText("consistent"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), warnText("drifted"))
			return nil
		},
	}
	cmd.Flags().StringVar(&correlationID, "correlation", "", "external calendar correlation id")
	cmd.Flags().StringVar(&ruleText, "rule", "", "structured recurrence rule")
	cmd.Flags().StringVar(&dateStr, "date", "", "series start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&startStr, "from", "09:00", "start time of day (HH:MM)")
	cmd.Flags().StringVar(&endStr, "to", "10:00", "end time of day (HH:MM)")
	cmd.Flags().StringVar(&zoneID, "zone", "", "expected timezone id")
	_ = cmd.MarkFlagRequired("correlation")
	_ = cmd.MarkFlagRequired("rule")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func buildTemplate(ownerID, title, buildingID, roomID, dateStr, startStr, endStr, zoneID string) (reservation.Reservation, error) {
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return reservation.Reservation{}, fmt.Errorf("bad --date %q: %w", dateStr, err)
	}
	startClock, err := parseClock(startStr)
	if err != nil {
		return reservation.Reservation{}, err
	}
	endClock, err := parseClock(endStr)
	if err != nil {
		return reservation.Reservation{}, err
	}

	period, err := timeperiod.New(date, date, startClock, endClock, zoneID)
	if err != nil {
		return reservation.Reservation{}, err
	}

	template := reservation.Reservation{
		Kind:    reservation.KindRoom,
		OwnerID: ownerID,
		Title:   title,
		Period:  period,
	}
	template.AddAllocation(reservation.Allocation{
		Kind:       reservation.KindRoom,
		BuildingID: buildingID,
		RoomID:     roomID,
		Period:     period.Clone(),
	})
	return template, nil
}

func parseClock(value string) (time.Time, error) {
	for _, layout := range []string{"15:04", time.TimeOnly} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad clock value %q, want HH:MM", value)
}

func printWarnings(out io.Writer, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintln(out, warnText("warning: "+warning))
	}
}
