package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"markestedt/pastemd/config"
	"markestedt/pastemd/i18n"
	"markestedt/pastemd/notify"
	"markestedt/pastemd/platform"
	"markestedt/pastemd/storage"
	"markestedt/pastemd/web"
)

var (
	debug      bool
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:   "pastemd",
		Short: "Paste clipboard Markdown into Word, WPS and Excel",
		Long: `PasteMD waits for a global hotkey, classifies the clipboard and inserts it
into the focused Word, WPS or Excel window as a native document or table.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent()
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default: per-user config directory)")

	root.AddCommand(onceCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// resolveConfigPath returns the config path from --config or the default.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.ConfigPath()
}

func loadStore() (*config.Store, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Configuration loaded", "path", path)
	return config.NewStore(path, cfg), nil
}

func openHistory(store *config.Store) (*storage.DB, error) {
	return storage.Open(filepath.Dir(store.Path()))
}

// trayActions are the operations behind the tray menu
type trayActions struct {
	open      func(target string) error
	saveDir   func() string
	dashboard string
	reload    func() error
}

// services are the long-lived collaborators shared by all invocations.
type services struct {
	store  *config.Store
	queue  *notify.Queue
	db     *storage.DB
	server *web.Server
}

func startServices() (*services, error) {
	store, err := loadStore()
	if err != nil {
		return nil, err
	}
	cfg := store.Snapshot()

	s := &services{store: store, queue: notify.New(cfg.Notify.QueueSize)}
	if cfg.History.Enabled {
		if s.db, err = openHistory(store); err != nil {
			slog.Warn("Paste history disabled", "error", err)
		}
	}
	return s, nil
}

func (s *services) agent() *Agent {
	var (
		history Recorder
		feed    Feed
	)
	if s.db != nil {
		history = s.db
	}
	if s.server != nil {
		feed = s.server
	}
	return NewAgent(s.store, s.queue, history, feed)
}

func (s *services) close() {
	s.queue.Close()
	if s.db != nil {
		s.db.Close()
	}
}

func runAgent() error {
	s, err := startServices()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := s.store.Watch(ctx); err != nil {
		slog.Warn("Config changes will not be picked up", "error", err)
	}

	cfg := s.store.Snapshot()
	if cfg.Web.Enabled {
		var history web.History
		if s.db != nil {
			history = s.db
		}
		s.server = web.NewServer(history, s.store, cfg.Web.Port)
		go func() {
			if err := s.server.Start(ctx); err != nil {
				slog.Error("Web server stopped", "error", err)
			}
		}()
	}

	catalog, _ := i18n.Load(cfg.Notify.Language)
	actions := trayActions{
		open:    platform.Launcher{}.Open,
		saveDir: func() string { return s.store.Snapshot().ExpandedSaveDir() },
		reload:  s.store.Reload,
	}
	if s.server != nil {
		actions.dashboard = s.server.URL()
	}

	agent := s.agent()
	err = runWithTray(ctx, cancel, catalog, actions, func() error {
		return agent.Run(ctx)
	})

	slog.Info("PasteMD stopped")
	return err
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single paste invocation against the current clipboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := startServices()
			if err != nil {
				return err
			}
			defer s.close()

			for _, o := range s.agent().Once(cmd.Context()) {
				status := "ok"
				if !o.Succeeded {
					status = "failed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", status, o.MessageKey)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent paste outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}
			db, err := openHistory(store)
			if err != nil {
				return err
			}
			defer db.Close()

			pastes, err := db.GetPastes(limit, offset)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tKIND\tTARGET\tPOLICY\tOK\tMESSAGE")
			for _, p := range pastes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
					p.Timestamp.Local().Format(time.DateTime), p.ContentKind, p.Target, p.Policy, p.Succeeded, p.MessageKey)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of entries to skip")
	return cmd
}

func statsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize paste history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}
			db, err := openHistory(store)
			if err != nil {
				return err
			}
			defer db.Close()

			now := time.Now()
			overall, err := db.GetOverallStats(now, days)
			if err != nil {
				return err
			}
			targets, err := db.GetTargetStats(now, days)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Last %d days: %d outcomes from %d pastes, %d succeeded, %d failed, %d warnings, avg %.0f ms\n",
				days, overall.Total, overall.Invocations, overall.SuccessCount, overall.FailureCount, overall.WarningCount, overall.AvgDurationMs)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TARGET\tTOTAL\tOK\tFAILED\tAVG MS")
			for _, t := range targets {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.0f\n", t.Target, t.Total, t.SuccessCount, t.FailureCount, t.AvgDurationMs)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "number of days to include")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}
