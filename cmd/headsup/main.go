// Package main is the entry point for the Heads-Up CLI. Heads-Up is a
// proactive assistant engine for a small business: it watches reminders,
// debts and repair jobs, and decides when something is worth interrupting
// the owner about — and when to stay quiet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/headsup/internal/bus"
	"github.com/normanking/headsup/internal/config"
	"github.com/normanking/headsup/internal/data"
	"github.com/normanking/headsup/internal/delivery"
	"github.com/normanking/headsup/internal/engine"
	"github.com/normanking/headsup/internal/logging"
	"github.com/normanking/headsup/internal/speech"
	"github.com/normanking/headsup/pkg/types"
)

var (
	version = "0.1.0"

	cfgPath string
	subject string
	verbose bool

	cfg      config.Config
	log      zerolog.Logger
	logClose func() error
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func main() {
	rootCmd := &cobra.Command{
		Use:   "headsup",
		Short: "Heads-Up - proactive interruption engine for a small business",
		Long: `Heads-Up watches your reminders, debts and repair jobs and speaks up
only when something real is happening: an overdue commitment, money
going stale, work piling up behind a missing part. Silence is the
default; every interruption has to earn its place.`,
		PersistentPreRunE: initApp,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.headsup/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&subject, "subject", "", "business/user to operate on (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Heads-Up v%s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}
	if subject == "" {
		subject = cfg.Subject
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, logClose, err = logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	return nil
}

// buildStack wires store, engine, bus, speaker and controller for the
// configured subject. The caller owns the returned closer.
func buildStack() (*delivery.Controller, *data.SubjectView, func(), error) {
	store, err := data.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	view := store.ForSubject(subject)

	registry := engine.NewRegistry(func(s string) *engine.Engine {
		return engine.New(s, store.ForSubject(s), cfg.Engine,
			engine.WithLogger(logging.Component(log, "engine")))
	})
	eng := registry.Get(subject)

	events := bus.New()

	var speaker speech.Speaker
	switch cfg.Speech.Channel {
	case "push":
		speaker = speech.NewPushSpeaker(cfg.Speech.PushURL, logging.Component(log, "push"))
	default:
		speaker = speech.NewConsoleSpeaker()
	}

	controller := delivery.New(eng, view, speaker, events,
		delivery.Config{Interval: cfg.Scheduler.Interval},
		logging.Component(log, "delivery"))
	delivery.NewAuditWriter(events, view, logging.Component(log, "audit"))

	closer := func() {
		controller.Stop()
		events.Close()
		if ps, ok := speaker.(*speech.PushSpeaker); ok {
			ps.Close()
		}
		store.Close()
		if logClose != nil {
			logClose()
		}
	}
	return controller, view, closer, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the engine loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, _, closer, err := buildStack()
			if err != nil {
				return err
			}
			defer closer()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := controller.Start(ctx); err != nil {
				return err
			}
			log.Info().Str("subject", subject).Dur("interval", cfg.Scheduler.Interval).Msg("engine running")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			log.Info().Msg("shutting down")
			return nil
		},
	}
}

func evaluateCmd() *cobra.Command {
	var command string
	var closeout bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run a single evaluation cycle and print the decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, view, closer, err := buildStack()
			if err != nil {
				return err
			}
			defer closer()

			ec := engine.Context{Command: command, RequestCloseout: closeout}
			if events, err := view.RecentEvents(cmd.Context(), 10); err == nil {
				ec.RecentEvents = events
			}

			result := controller.Tick(cmd.Context(), ec)
			if result == nil {
				fmt.Println("Nothing worth interrupting for.")
				return nil
			}

			fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%s)", result.Trigger, result.Priority)))
			// Give the async speaker a moment before the process exits.
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "owner utterance for this cycle")
	cmd.Flags().BoolVar(&closeout, "closeout", false, "request the end-of-day closeout")
	return cmd
}

func auditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent delivered interruptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := data.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.ForSubject(subject).RecentAudit(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No interruptions delivered yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-20s %-9s %s\n",
					e.CreatedAt.Format("2006-01-02 15:04"), e.Trigger, e.Priority, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo business data for trying the engine out",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := data.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			view := store.ForSubject(subject)
			ctx := cmd.Context()
			now := time.Now()

			completed := now.Add(-5 * 24 * time.Hour)
			seeds := []error{
				view.CreateReminder(ctx, &types.Reminder{Message: "call the parts supplier", DueAt: now.Add(-2 * time.Hour)}),
				view.CreateDebt(ctx, &types.Debt{Person: "Carlos", Amount: 150, Direction: types.DebtOwedToMe, CreatedAt: now.Add(-4 * 24 * time.Hour)}),
				view.CreateJob(ctx, &types.Job{Customer: "Ana", Device: "laptop", Status: types.JobWaitingParts}),
				view.CreateJob(ctx, &types.Job{Customer: "Luis", Device: "phone", Status: types.JobWaitingParts}),
				view.CreateJob(ctx, &types.Job{Customer: "Marta", Device: "tablet", Status: types.JobCompleted, CompletedAt: &completed}),
				view.RecordEvent(ctx, &types.BusinessEvent{Kind: types.EventMissedCall, Counterparty: "Carlos", OccurredAt: now.Add(-30 * time.Minute)}),
				view.RecordEvent(ctx, &types.BusinessEvent{Kind: types.EventPaymentReceived, Amount: 320, OccurredAt: now.Add(-3 * time.Hour)}),
			}
			for _, err := range seeds {
				if err != nil {
					return err
				}
			}
			fmt.Println("Seeded demo data.")
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})

	return cmd
}
