// Command sv is a terminal stories viewer.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/stories_viewer/pkg/config"
	"github.com/Dicklesworthstone/stories_viewer/pkg/export"
	"github.com/Dicklesworthstone/stories_viewer/pkg/history"
	"github.com/Dicklesworthstone/stories_viewer/pkg/logger"
	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
	"github.com/Dicklesworthstone/stories_viewer/pkg/session"
	"github.com/Dicklesworthstone/stories_viewer/pkg/ui"
	"github.com/Dicklesworthstone/stories_viewer/pkg/updater"
	"github.com/Dicklesworthstone/stories_viewer/pkg/version"
	"github.com/Dicklesworthstone/stories_viewer/pkg/watcher"
	"github.com/Dicklesworthstone/stories_viewer/pkg/workspace"
)

type options struct {
	feeds        []string
	configPath   string
	duration     time.Duration
	user         string
	pick         bool
	robotCatalog bool
	robotStats   bool
	exportMD     string
	exportSQLite string
	version      bool
	checkUpdate  bool
	verbose      bool
}

func (o *options) robot() bool {
	return o.robotCatalog || o.robotStats || o.exportMD != "" || o.exportSQLite != ""
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "sv [feed...]",
		Short: "sv - terminal stories viewer",
		Long: "Browse stories grouped by user. Feeds are stories.json, stories.jsonl or\n" +
			"stories.yaml files (or directories holding them).\n\n" + config.Usage(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.feeds, "feed", "f", nil, "feed file or directory (repeatable)")
	f.StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultPath+")")
	f.DurationVar(&opts.duration, "duration", 0, "display time per story (overrides config)")
	f.StringVar(&opts.user, "user", "", "open the viewer at this user")
	f.BoolVar(&opts.pick, "pick", false, "choose the user to open from a list")
	f.BoolVar(&opts.robotCatalog, "robot-catalog", false, "print the catalog as JSON and exit")
	f.BoolVar(&opts.robotStats, "robot-stats", false, "print catalog statistics as JSON and exit")
	f.StringVar(&opts.exportMD, "export-md", "", "write a markdown report to this file and exit")
	f.StringVar(&opts.exportSQLite, "export-sqlite", "", "write a SQLite database of the catalog into this directory and exit")
	f.BoolVar(&opts.version, "version", false, "print the version and exit")
	f.BoolVar(&opts.checkUpdate, "check-update", false, "check GitHub for a newer release and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	return cmd
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.version {
		fmt.Fprintf(out, "sv %s\n", version.Version)
		return nil
	}
	if opts.checkUpdate {
		return checkUpdate(ctx, out, updater.NewChecker())
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("duration") {
		if opts.duration <= 0 {
			return fmt.Errorf("--duration must be positive, got %s", opts.duration)
		}
		cfg.Playback.Duration = opts.duration
	}

	sources := append(append([]string{}, args...), opts.feeds...)
	if len(sources) == 0 {
		sources = cfg.Feeds
	}
	if len(sources) == 0 {
		sources = []string{"."}
	}

	log, closeLog, err := buildLogger(cfg, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	records, err := loadFeeds(ctx, sources, log)
	if err != nil {
		log.Warn("no feed loaded, using fallback stories", "error", err)
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			log.Warn("view history disabled", "path", cfg.History.Path, "error", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	var seen map[string]map[int]bool
	if store != nil {
		if seen, err = store.Seen(ctx); err != nil {
			log.Warn("could not read view history", "error", err)
		}
	}

	sessOpts := session.Options{
		Duration:        cfg.Playback.Duration,
		Logger:          log.With("component", "session"),
		Seen:            seen,
		Probe:           session.ContentProber("."),
		SkipUnavailable: cfg.Playback.SkipUnavailable,
	}
	if store != nil {
		sessOpts.History = store
	}
	ctrl := session.New(records, sessOpts)
	defer ctrl.Close()

	if opts.robot() {
		return runRobot(out, opts, ctrl)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("interactive mode needs a terminal; use --robot-catalog, --robot-stats, --export-md or --export-sqlite")
	}

	startUser := opts.user
	if opts.pick {
		startUser, err = pickUser(ctrl.Catalog().Usernames())
		if err != nil {
			return err
		}
	}

	uiOpts := ui.Options{
		HoldThreshold: cfg.Playback.HoldThreshold,
		StartUser:     startUser,
		Logger:        log.With("component", "ui"),
		Reload: func(ctx context.Context) ([]model.StoryRecord, error) {
			return loadFeeds(ctx, sources, log)
		},
	}
	if cfg.Watch {
		if w, err := startWatcher(sources, log); err != nil {
			log.Warn("live reload unavailable", "error", err)
		} else {
			uiOpts.Watcher = w
			defer w.Stop()
		}
	}

	p := tea.NewProgram(
		ui.NewModel(ctrl, uiOpts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}
	if store != nil {
		logLastSession(ctx, log, store, ctrl.SessionID())
	}
	return nil
}

// logLastSession writes how many stories the last viewer session showed.
func logLastSession(ctx context.Context, log *slog.Logger, store *history.Store, sessionID string) {
	if sessionID == "" {
		return
	}
	views, err := store.Views(ctx, sessionID)
	if err != nil {
		log.Warn("could not read session views", "session", sessionID, "error", err)
		return
	}
	log.Info("last session", "session", sessionID, "views", len(views))
}

// buildLogger logs to a file while the TUI owns the terminal and to stderr
// for robot commands. Verbose robot runs also keep the file log.
func buildLogger(cfg *config.Config, opts *options, stderr io.Writer) (*slog.Logger, func(), error) {
	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}

	if opts.robot() || opts.version {
		if !opts.verbose {
			return logger.New(logger.Opts{Level: "warn", Writers: []io.Writer{stderr}, Console: true}), func() {}, nil
		}
		f, err := logger.OpenFile(cfg.Log.Path)
		if err != nil {
			return logger.New(logger.Opts{Level: level, Writers: []io.Writer{stderr}, Console: true}), func() {}, nil
		}
		return logger.New(logger.Opts{Level: level, Writers: []io.Writer{stderr, f}}), func() { f.Close() }, nil
	}

	f, err := logger.OpenFile(cfg.Log.Path)
	if err != nil {
		return nil, nil, err
	}
	return logger.New(logger.Opts{Level: level, Writers: []io.Writer{f}}), func() { f.Close() }, nil
}

// loadFeeds loads every source and returns the merged records. It fails
// only when no source could be loaded; partial failures are logged.
func loadFeeds(ctx context.Context, sources []string, log *slog.Logger) ([]model.StoryRecord, error) {
	l := workspace.NewAggregateLoader(sources)
	l.SetLogger(log)

	records, results, err := l.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := workspace.Summarize(results)
	log.Info("feeds loaded",
		"sources", summary.TotalSources,
		"failed", summary.FailedSources,
		"stories", summary.TotalStories,
	)
	return records, nil
}

func startWatcher(sources []string, log *slog.Logger) (*watcher.Watcher, error) {
	w, err := watcher.NewWatcher(sources,
		watcher.WithDebounceDuration(watcher.DefaultDebounce),
		watcher.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

func runRobot(out io.Writer, opts *options, ctrl *session.Controller) error {
	cat := ctrl.Catalog()

	if opts.exportMD != "" {
		if err := export.SaveMarkdownToFile(cat, opts.exportMD, ctrl.Seen()); err != nil {
			return fmt.Errorf("export markdown: %w", err)
		}
	}
	if opts.exportSQLite != "" {
		if err := export.NewSQLiteExporter(cat, ctrl.Seen()).Export(opts.exportSQLite); err != nil {
			return fmt.Errorf("export sqlite: %w", err)
		}
	}
	if opts.robotCatalog {
		if err := export.WriteJSON(out, export.BuildCatalog(cat, time.Now())); err != nil {
			return err
		}
	}
	if opts.robotStats {
		if err := export.WriteJSON(out, export.ComputeStats(cat)); err != nil {
			return err
		}
	}
	return nil
}

func pickUser(users []string) (string, error) {
	var choice string
	err := huh.NewSelect[string]().
		Title("Open stories of").
		Options(huh.NewOptions(users...)...).
		Value(&choice).
		Run()
	if err != nil {
		return "", fmt.Errorf("pick user: %w", err)
	}
	return choice, nil
}

func checkUpdate(ctx context.Context, out io.Writer, c *updater.Checker) error {
	rel, newer, err := c.Check(ctx, version.Version)
	if err != nil {
		return err
	}
	if !newer {
		fmt.Fprintf(out, "sv %s is up to date\n", version.Version)
		return nil
	}
	fmt.Fprintf(out, "sv %s is available (running %s): %s\n", rel.TagName, version.Version, rel.HTMLURL)
	return nil
}
