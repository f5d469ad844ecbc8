// cmd/discord/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keshon/disbot/internal/admin"
	"github.com/keshon/disbot/internal/cmdsync"
	"github.com/keshon/disbot/internal/commands"
	"github.com/keshon/disbot/internal/config"
	"github.com/keshon/disbot/internal/discord"
	"github.com/keshon/disbot/internal/gateway"
	"github.com/keshon/disbot/internal/logging"
	"github.com/keshon/disbot/pkg/cmd"
	"github.com/keshon/disbot/pkg/retrylimit"
)

const appName = "disbot"

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("bot stopped")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	logger, closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Info().Str("scope", cfg.Scope().String()).Msgf("starting %s bot", appName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := cmd.NewRegistry()

	botOpts := []discord.Option{discord.WithResolver(reg), discord.WithLogger(logger)}
	if cfg.PrefixCommands {
		botOpts = append(botOpts, discord.WithPrefix(cfg.CommandPrefix))
	}
	bot, err := discord.New(cfg.DiscordToken, botOpts...)
	if err != nil {
		return err
	}

	retry := retrylimit.DefaultConfig()
	retry.MaxAttempts = cfg.SyncAttempts
	coord := cmdsync.New(reg, bot,
		cmdsync.WithRetry(retry),
		cmdsync.WithWorkers(cfg.SyncWorkers),
		cmdsync.WithScopes(cmd.Global(), cfg.Scope()),
		cmdsync.WithLogger(logger.With().Str("component", "sync").Logger()),
	)
	defer coord.Close()

	if err := registerCommands(reg, cfg, coord, logger); err != nil {
		return err
	}

	d := cmd.NewDispatcher(reg,
		cmd.WithBudget(cfg.DispatchBudget),
		cmd.WithErrorReporter(cmd.LogReporter(logger)),
		cmd.WithLogger(logger),
	)
	bot.OnInvocation(func(ctx context.Context, inv *cmd.Invocation) {
		_ = d.Handle(ctx, inv)
	})

	if err := bot.Connect(ctx); err != nil {
		if gateway.IsAuth(err) {
			logger.Error().Err(err).Msg("discord rejected the token")
		}
		return err
	}
	defer bot.Close()

	if cfg.SyncOnStart {
		if reports, err := coord.SyncAll(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial sync incomplete")
		} else {
			for _, r := range reports {
				logger.Info().Stringer("report", r).Msg("initial sync")
			}
		}
	}

	go coord.Run(ctx)
	if cfg.SyncSchedule != "" {
		if err := coord.Schedule(ctx, cfg.SyncSchedule); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	if cfg.AdminAddr != "" {
		srv := admin.New(cfg.AdminAddr, reg, coord,
			admin.WithPending(d.Pending),
			admin.WithLogger(logger.With().Str("component", "admin").Logger()),
		)
		go func() {
			if err := srv.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case s := <-sig:
		logger.Info().Stringer("signal", s).Msg("shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("admin server failed")
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := d.Close(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn().Err(err).Msg("dispatcher close")
	}
	logger.Info().Msg("bot exited cleanly")
	return runErr
}

func registerCommands(reg *cmd.Registry, cfg *config.Config, syncer commands.Syncer, logger zerolog.Logger) error {
	err := commands.Register(reg, commands.Deps{
		Scope:     cfg.Scope(),
		Syncer:    syncer,
		SyncGuard: discord.WithPermissions(discordgo.PermissionManageGuild),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if cfg.CommandsFile == "" {
		return nil
	}
	entries, err := commands.LoadCatalog(cfg.CommandsFile)
	if err != nil {
		return err
	}
	return commands.RegisterCatalog(reg, entries, cmd.WithCommandLog(logger))
}
