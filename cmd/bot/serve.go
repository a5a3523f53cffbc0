package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ivanoskov/lazzyfinance/internal/bot"
	"github.com/ivanoskov/lazzyfinance/internal/categorizer"
	"github.com/ivanoskov/lazzyfinance/internal/charts"
	"github.com/ivanoskov/lazzyfinance/internal/config"
	"github.com/ivanoskov/lazzyfinance/internal/export"
	"github.com/ivanoskov/lazzyfinance/internal/pending"
	"github.com/ivanoskov/lazzyfinance/internal/scheduler"
	"github.com/ivanoskov/lazzyfinance/internal/service"
	"github.com/ivanoskov/lazzyfinance/internal/web"
)

const tokenPurgeInterval = 24 * time.Hour

func serveCmd() *cobra.Command {
	var noWeb bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the daily reminders and the dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), noWeb)
		},
	}
	cmd.Flags().BoolVar(&noWeb, "no-web", false, "do not start the dashboard API")
	return cmd
}

// app is everything the commands share once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracker  *service.ExpenseTracker
	exporter *export.Exporter
	bot      *bot.Bot
	close    func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	loc := cfg.Location()
	hour, minute, _ := cfg.ReminderClock()

	tracker := service.NewExpenseTracker(repo, loc)
	ollama := categorizer.New(categorizer.Config{
		BaseURL: cfg.OllamaBaseURL,
		Model:   cfg.OllamaModel,
		Timeout: cfg.OllamaTimeout,
	}, logger)
	exporter := export.NewExporter(cfg.ExportDir, loc, logger)

	b, err := bot.NewBot(cfg.TelegramToken, tracker, ollama, pending.NewStore(), logger, bot.Options{
		WebBaseURL:          cfg.WebBaseURL,
		ReminderPolicy:      cfg.ReminderPolicy,
		ReminderConcurrency: cfg.ReminderConcurrency,
		ReminderHour:        hour,
		ReminderMinute:      minute,
		Charts:              charts.NewChartGenerator(),
		Exporter:            exporter,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		tracker:  tracker,
		exporter: exporter,
		bot:      b,
		close:    repo.Close,
	}, nil
}

func runServe(ctx context.Context, noWeb bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	hour, minute, _ := a.cfg.ReminderClock()
	daily := scheduler.NewDaily(hour, minute, a.cfg.Location(), a.bot.SendRecurringReminders, a.logger)
	a.bot.SetReminderRunner(daily.RunNow)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.bot.Start(ctx) })
	g.Go(func() error {
		if err := daily.Start(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.exporter.RunCleanup(ctx, export.DefaultCleanupInterval, export.DefaultMaxAge)
		return nil
	})

	if !noWeb {
		server := web.NewServer(a.tracker, a.cfg.AllowedOrigins(), a.logger)
		g.Go(func() error {
			return server.ListenAndServe(ctx, fmt.Sprintf(":%d", a.cfg.WebPort))
		})
		g.Go(func() error {
			server.RunTokenPurge(ctx, tokenPurgeInterval)
			return nil
		})
	}

	a.logger.Info("lazzyfinance started",
		"ledger", a.cfg.LedgerBackend,
		"reminder_time", a.cfg.ReminderTime,
		"timezone", a.cfg.Timezone,
		"web", !noWeb)

	err = g.Wait()
	a.logger.Info("lazzyfinance stopped")
	return err
}
