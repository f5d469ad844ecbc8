package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/keshon/disbot/internal/cmdsync"
	"github.com/keshon/disbot/internal/commands"
	"github.com/keshon/disbot/internal/config"
	"github.com/keshon/disbot/internal/discord"
	"github.com/keshon/disbot/internal/gateway"
	"github.com/keshon/disbot/internal/logging"
	"github.com/keshon/disbot/pkg/cmd"
	"github.com/keshon/disbot/pkg/util"
)

type rootOptions struct {
	envFiles     []string
	commandsFile string
	guild        string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "disbot-cli",
		Short:         "Inspect, run and sync the bot's commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_, _, err := logging.Setup(logging.Options{Level: opts.logLevel})
			return err
		},
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env", nil, "env files to load (default .env)")
	root.PersistentFlags().StringVar(&opts.commandsFile, "commands", "", "static command catalog file")
	root.PersistentFlags().StringVar(&opts.guild, "guild", "", "guild ID to act on (empty for global)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newListCmd(opts),
		newInvokeCmd(opts),
		newDiffCmd(opts),
		newSyncCmd(opts),
	)
	return root
}

func (o *rootOptions) scope() cmd.Scope { return cmd.Guild(o.guild) }

// app is the command tree wired to a catalog, as the bot builds it.
type app struct {
	registry *cmd.Registry
	catalog  gateway.Catalog
	coord    *cmdsync.Coordinator
}

func (o *rootOptions) newApp(catalog gateway.Catalog, scope cmd.Scope, extra ...cmdsync.Option) (*app, error) {
	logger := zerolog.Ctx(context.Background()).With().Str("component", "cli").Logger()
	reg := cmd.NewRegistry()
	coord := cmdsync.New(reg, catalog, append([]cmdsync.Option{
		cmdsync.WithScopes(cmd.Global(), scope),
		cmdsync.WithLogger(logger),
	}, extra...)...)

	err := commands.Register(reg, commands.Deps{
		Scope:     scope,
		Syncer:    coord,
		SyncGuard: discord.WithPermissions(discordgo.PermissionManageGuild),
		Logger:    logger,
	})
	if err != nil {
		coord.Close()
		return nil, err
	}
	if o.commandsFile != "" {
		entries, err := commands.LoadCatalog(o.commandsFile)
		if err == nil {
			err = commands.RegisterCatalog(reg, entries)
		}
		if err != nil {
			coord.Close()
			return nil, err
		}
	}
	return &app{registry: reg, catalog: catalog, coord: coord}, nil
}

// offline builds the tree against an in-memory catalog; nothing reaches
// Discord.
func (o *rootOptions) offline() (*app, error) {
	return o.newApp(gateway.NewMemoryCatalog(), o.scope())
}

// online loads the bot configuration and builds the tree against Discord.
func (o *rootOptions) online() (*app, *config.Config, error) {
	cfg, err := config.New(o.envFiles...)
	if err != nil {
		return nil, nil, err
	}
	if o.commandsFile == "" {
		o.commandsFile = cfg.CommandsFile
	}
	bot, err := discord.New(cfg.DiscordToken)
	if err != nil {
		return nil, nil, err
	}
	scope := cfg.Scope()
	if o.guild != "" {
		scope = o.scope()
	}
	a, err := o.newApp(bot, scope, cmdsync.WithWorkers(cfg.SyncWorkers))
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the commands visible in a scope",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := opts.offline()
			if err != nil {
				return err
			}
			defer a.coord.Close()

			out := c.OutOrStdout()
			scopes := []cmd.Scope{cmd.Global()}
			if s := opts.scope(); !s.IsGlobal() {
				scopes = append(scopes, s)
			}
			for _, s := range scopes {
				for d := range a.registry.List(s) {
					fmt.Fprintf(out, "%-8s /%-16s %s\n", s, d.Name, d.Description)
					for _, o := range d.Options {
						fmt.Fprintf(out, "%-8s   %-16s %s%s\n", "", o.Name, o.Type, requiredMark(o.Required))
					}
				}
			}
			return nil
		},
	}
}

func requiredMark(required bool) string {
	if required {
		return " (required)"
	}
	return ""
}

func newInvokeCmd(opts *rootOptions) *cobra.Command {
	var (
		user    string
		admin   bool
		timeout time.Duration
	)
	c := &cobra.Command{
		Use:   "invoke <name> [key=value...]",
		Short: "Run a command locally and print its replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := opts.offline()
			if err != nil {
				return err
			}
			defer a.coord.Close()

			params, err := parseArgs(args[1:])
			if err != nil {
				return err
			}
			caller := cmd.Caller{UserID: "0", Username: user, ChannelID: "console"}
			if admin {
				caller.Permissions = discordgo.PermissionAdministrator
			}

			ctx, cancel := signalContext(c.Context())
			defer cancel()

			d := cmd.NewDispatcher(a.registry, cmd.WithLogger(*zerolog.Ctx(ctx)))
			inv := cmd.NewInvocation(cmd.InvocationParams{
				Command:   strings.ToLower(args[0]),
				Scope:     opts.scope(),
				Args:      params,
				Caller:    caller,
				Responder: newConsoleResponder(c.OutOrStdout()),
			})
			handleErr := d.Handle(ctx, inv)

			waitCtx, stop := context.WithTimeout(ctx, timeout)
			defer stop()
			if err := d.Wait(waitCtx); err != nil {
				fmt.Fprintf(c.ErrOrStderr(), "gave up waiting for /%s: %v\n", args[0], err)
			}
			if err := d.Close(context.WithoutCancel(ctx)); err != nil {
				return err
			}
			return handleErr
		},
	}
	c.Flags().StringVar(&user, "user", "console", "username of the caller")
	c.Flags().BoolVar(&admin, "admin", false, "invoke with administrator permissions")
	c.Flags().DurationVar(&timeout, "wait", time.Minute, "how long to wait for acknowledged commands")
	return c
}

// parseArgs turns key=value words into invocation arguments.
func parseArgs(words []string) (map[string]any, error) {
	args := make(map[string]any, len(words))
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", w)
		}
		args[k] = v
	}
	return args, nil
}

func newDiffCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show what a sync would change on Discord",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a, cfg, err := opts.online()
			if err != nil {
				return err
			}
			defer a.coord.Close()

			ctx, cancel := signalContext(c.Context())
			defer cancel()

			scopes := scopesOf(a.registry, cfg.Scope(), opts.scope())
			remotes := make([][]cmd.RemoteCommand, len(scopes))
			idx := make([]int, len(scopes))
			for i := range idx {
				idx[i] = i
			}
			err = util.Parallel(ctx, idx, cfg.SyncWorkers, func(ctx context.Context, i int) error {
				remote, err := a.catalog.FetchRemoteCommands(ctx, scopes[i])
				if err != nil {
					return fmt.Errorf("%s: %w", scopes[i], err)
				}
				remotes[i] = remote
				return nil
			})
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			for i, scope := range scopes {
				changes := gateway.Changes(a.registry.Diff(scope, remotes[i]))
				if len(changes) == 0 {
					fmt.Fprintf(out, "%s: up to date\n", scope)
					continue
				}
				for _, ch := range changes {
					fmt.Fprintf(out, "%s: %s %s\n", scope, ch.Op, ch.Name())
				}
			}
			return nil
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the command tree with Discord",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a, cfg, err := opts.online()
			if err != nil {
				return err
			}
			defer a.coord.Close()

			ctx, cancel := signalContext(c.Context())
			defer cancel()

			var extra []cmd.Scope
			if s := opts.scope(); !s.IsGlobal() {
				extra = append(extra, s)
			}
			extra = append(extra, cfg.Scope())
			reports, err := a.coord.SyncAll(ctx, extra...)
			for _, r := range reports {
				fmt.Fprintln(c.OutOrStdout(), r)
			}
			return err
		},
	}
}

func scopesOf(reg *cmd.Registry, extra ...cmd.Scope) []cmd.Scope {
	seen := map[cmd.Scope]bool{}
	var out []cmd.Scope
	for _, s := range append([]cmd.Scope{cmd.Global()}, append(reg.Scopes(), extra...)...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
