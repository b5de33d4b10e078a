package ctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/tazhate/deadlinebot/config"
	"github.com/tazhate/deadlinebot/internal/calendar"
	"github.com/tazhate/deadlinebot/internal/clients/caldav"
	"github.com/tazhate/deadlinebot/internal/domain"
	"github.com/tazhate/deadlinebot/internal/service"
	"github.com/tazhate/deadlinebot/internal/storage"
)

var now = time.Now

// NewApp builds the deadlinectl command tree.
func NewApp(version string) *cli.App {
	app := cli.NewApp()
	app.Name = "deadlinectl"
	app.Usage = "Inspect and manage the deadline calendar"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "calendar",
			Usage: "Path to the .ics file (overrides CALENDAR_PATH)",
		},
		cli.StringFlag{
			Name:  "db",
			Usage: "Path to the sqlite database (overrides DATABASE_PATH)",
		},
	}
	app.Commands = []cli.Command{
		Events,
		Upcoming,
		Import,
		Subjects,
		Calendars,
	}
	return app
}

var Events = cli.Command{
	Name:   "events",
	Usage:  "Lists every event in the calendar file",
	Action: listEvents,
}

var Upcoming = cli.Command{
	Name:  "upcoming",
	Usage: "Shows the events a reminder check would announce right now",
	Flags: []cli.Flag{
		cli.DurationFlag{
			Name:  "window",
			Usage: "Lookahead window (defaults to LOOKAHEAD)",
		},
	},
	Action: listUpcoming,
}

var Import = cli.Command{
	Name:      "import",
	Usage:     "Replaces the calendar file with FILE after validating it",
	ArgsUsage: "FILE",
	Action:    importCalendar,
}

var Subjects = cli.Command{
	Name:   "subjects",
	Usage:  "Lists registered subjects",
	Action: listSubjects,
}

var Calendars = cli.Command{
	Name:   "calendars",
	Usage:  "Lists the calendars found on the CalDAV server",
	Action: listCalendars,
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if p := c.GlobalString("calendar"); p != "" {
		cfg.CalendarPath = p
	}
	if p := c.GlobalString("db"); p != "" {
		cfg.DatabasePath = p
	}
	return cfg, nil
}

func listEvents(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	events, err := calendar.NewFileStore(cfg.CalendarPath, cfg.Timezone).ListEvents(context.Background())
	if err != nil {
		return fmt.Errorf("unable to load events: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintln(c.App.Writer, "nothing found")
		return nil
	}
	for _, e := range events {
		printEvent(c, cfg, e, "")
	}
	return nil
}

func listUpcoming(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	window := c.Duration("window")
	if window <= 0 {
		window = cfg.Lookahead
	}

	source := calendar.NewMultiSource().
		Add("calendar file", calendar.NewFileStore(cfg.CalendarPath, cfg.Timezone))
	if remote := caldav.NewSourceFromConfig(cfg); remote != nil {
		source.Add("caldav", remote)
	}

	events, err := source.ListEvents(context.Background())
	if err != nil {
		return fmt.Errorf("unable to load events: %w", err)
	}

	t := now()
	found := 0
	for _, e := range events {
		delta := e.Until(t)
		if delta <= 0 || delta > window {
			continue
		}
		printEvent(c, cfg, e, "in "+service.FormatRemaining(delta))
		found++
	}
	if found == 0 {
		fmt.Fprintf(c.App.Writer, "nothing due within %s\n", window)
	}
	return nil
}

func printEvent(c *cli.Context, cfg *config.Config, e domain.Event, suffix string) {
	line := fmt.Sprintf("%s  %-14s %s", e.Start.In(cfg.Timezone).Format("2006-01-02 15:04"), service.Classify(e.Title), e.Title)
	if e.Category != "" {
		line += " [" + e.Category + "]"
	}
	if suffix != "" {
		line += "  (" + suffix + ")"
	}
	fmt.Fprintf(c.App.Writer, "%s\n    uid: %s\n", line, e.UID)
}

func importCalendar(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("missing FILE argument")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := calendar.NewFileStore(cfg.CalendarPath, cfg.Timezone).Replace(context.Background(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "imported %d events into %s\n", n, cfg.CalendarPath)
	return nil
}

func listSubjects(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	subjects, err := store.ListSubjects(context.Background())
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Fprintln(c.App.Writer, "nothing found")
		return nil
	}
	for _, s := range subjects {
		fmt.Fprintf(c.App.Writer, "%-10s %s\n", s.Code, s.Name)
	}
	return nil
}

func listCalendars(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.CalDAVEnabled() {
		return errors.New("CalDAV is not configured (CALDAV_URL, CALDAV_USERNAME, CALDAV_PASSWORD)")
	}

	client := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
	cals, err := client.DiscoverCalendars(context.Background())
	if err != nil {
		return err
	}
	for _, cal := range cals {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", cal.Path, cal.DisplayName)
	}
	return nil
}
