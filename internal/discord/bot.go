// Package discord connects the command core to Discord through discordgo:
// slash interactions and prefix messages become invocations, and the bot's
// application commands form the remote catalog.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/disbot/internal/gateway"
	"github.com/keshon/disbot/pkg/cmd"
)

// Resolver finds the descriptor a prefix message refers to, so positional
// words can be bound to its options. *cmd.Registry satisfies it.
type Resolver interface {
	Resolve(scope cmd.Scope, name string) (cmd.Descriptor, bool)
}

// Option configures a Bot.
type Option func(*Bot)

// WithPrefix enables message commands starting with prefix.
func WithPrefix(prefix string) Option {
	return func(b *Bot) { b.prefix = prefix }
}

// WithResolver binds prefix command words to declared options.
func WithResolver(r Resolver) Option {
	return func(b *Bot) { b.resolver = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

// Bot is a Discord gateway.Client.
type Bot struct {
	dg       *discordgo.Session
	prefix   string
	resolver Resolver
	log      zerolog.Logger

	mu       sync.RWMutex
	appID    string
	ctx      context.Context
	callback gateway.InvocationFunc
}

var _ gateway.Client = (*Bot)(nil)

// New creates a Bot for token. Nothing is sent to Discord until Connect or a
// catalog call.
func New(token string, opts ...Option) (*Bot, error) {
	token = strings.TrimPrefix(token, "Bot ")
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	b := &Bot{dg: dg, log: zerolog.Nop(), ctx: context.Background()}
	for _, opt := range opts {
		opt(b)
	}

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onMessageCreate)
	return b, nil
}

// Session exposes the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session { return b.dg }

// OnInvocation sets the callback for incoming commands.
func (b *Bot) OnInvocation(fn gateway.InvocationFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callback = fn
}

// Connect opens the gateway session. Handlers run with a context derived
// from ctx. A rejected token yields *gateway.AuthError.
func (b *Bot) Connect(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.dg.Open(); err != nil {
		return classify(fmt.Errorf("failed to open Discord session: %w", err))
	}
	return nil
}

func (b *Bot) Close() error {
	return b.dg.Close()
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds
	if b.prefix != "" {
		b.dg.Identify.Intents |= discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentMessageContent
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	b.mu.Lock()
	b.appID = r.User.ID
	b.mu.Unlock()
	b.log.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Discord bot is running")
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		b.log.Debug().Int("type", int(i.Type)).Msg("ignoring interaction")
		return
	}
	data := i.ApplicationCommandData()
	if data.CommandType != 0 && data.CommandType != discordgo.ChatApplicationCommand {
		b.log.Debug().Str("command", data.Name).Msg("ignoring non-chat command")
		return
	}
	b.dispatch(interactionInvocation(s, i.Interaction))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if b.prefix == "" || m.Author == nil || m.Author.Bot {
		return
	}
	name, words, ok := parsePrefixed(m.Content, b.prefix)
	if !ok {
		return
	}
	scope := scopeOf(m.GuildID)

	var opts []cmd.Option
	if b.resolver != nil {
		if d, found := b.resolver.Resolve(scope, name); found {
			opts = d.Options
		}
	}
	b.dispatch(messageInvocation(s, m.Message, name, bindPositional(opts, words)))
}

func (b *Bot) dispatch(inv *cmd.Invocation) {
	b.mu.RLock()
	fn, ctx := b.callback, b.ctx
	b.mu.RUnlock()

	if fn == nil {
		b.log.Warn().Str("command", inv.Command()).Msg("no invocation handler set, dropping command")
		return
	}
	fn(ctx, inv)
}

// appIDFor returns the application ID, fetching the bot user when the
// gateway has not reported it yet.
func (b *Bot) appIDFor(ctx context.Context) (string, error) {
	b.mu.RLock()
	id := b.appID
	b.mu.RUnlock()
	if id != "" {
		return id, nil
	}
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		id = b.dg.State.User.ID
	} else {
		u, err := b.dg.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			return "", classify(fmt.Errorf("failed to fetch bot user: %w", err))
		}
		id = u.ID
	}
	b.mu.Lock()
	b.appID = id
	b.mu.Unlock()
	return id, nil
}

func scopeOf(guildID string) cmd.Scope {
	if guildID == "" {
		return cmd.Global()
	}
	return cmd.Guild(guildID)
}
