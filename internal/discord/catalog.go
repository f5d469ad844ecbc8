package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/disbot/internal/gateway"
	"github.com/keshon/disbot/pkg/cmd"
)

// FetchRemoteCommands lists the chat commands registered for scope. Context
// menu commands are left out so a sync never touches them.
func (b *Bot) FetchRemoteCommands(ctx context.Context, scope cmd.Scope) ([]cmd.RemoteCommand, error) {
	appID, err := b.appIDFor(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := b.dg.ApplicationCommands(appID, scope.GuildID(), requestOptions(ctx)...)
	if err != nil {
		return nil, classify(err)
	}

	out := make([]cmd.RemoteCommand, 0, len(remote))
	for _, ac := range remote {
		if ac.Type != 0 && ac.Type != discordgo.ChatApplicationCommand {
			continue
		}
		out = append(out, fromApplicationCommand(ac))
	}
	return out, nil
}

// ApplyRemoteCommand creates, edits or deletes one application command.
func (b *Bot) ApplyRemoteCommand(ctx context.Context, scope cmd.Scope, ch gateway.Change) error {
	appID, err := b.appIDFor(ctx)
	if err != nil {
		return err
	}
	guildID := scope.GuildID()

	switch ch.Op {
	case gateway.OpAdd:
		_, err = b.dg.ApplicationCommandCreate(appID, guildID, toApplicationCommand(ch.Local), requestOptions(ctx)...)
	case gateway.OpUpdate:
		_, err = b.dg.ApplicationCommandEdit(appID, guildID, ch.Remote.ID, toApplicationCommand(ch.Local), requestOptions(ctx)...)
	case gateway.OpRemove:
		err = b.dg.ApplicationCommandDelete(appID, guildID, ch.Remote.ID, requestOptions(ctx)...)
	default:
		return fmt.Errorf("unknown catalog operation %d", ch.Op)
	}
	if err != nil {
		return classify(err)
	}
	b.log.Debug().Str("scope", scope.String()).Str("op", ch.Op.String()).Str("command", ch.Name()).Msg("catalog updated")
	return nil
}

// requestOptions hands rate limits back to the caller instead of letting
// discordgo sleep through them.
func requestOptions(ctx context.Context) []discordgo.RequestOption {
	return []discordgo.RequestOption{
		discordgo.WithContext(ctx),
		discordgo.WithRetryOnRatelimit(false),
	}
}

var optionTypes = map[cmd.OptionType]discordgo.ApplicationCommandOptionType{
	cmd.OptionString:  discordgo.ApplicationCommandOptionString,
	cmd.OptionInteger: discordgo.ApplicationCommandOptionInteger,
	cmd.OptionBoolean: discordgo.ApplicationCommandOptionBoolean,
	cmd.OptionNumber:  discordgo.ApplicationCommandOptionNumber,
	cmd.OptionUser:    discordgo.ApplicationCommandOptionUser,
	cmd.OptionChannel: discordgo.ApplicationCommandOptionChannel,
	cmd.OptionRole:    discordgo.ApplicationCommandOptionRole,
}

func toApplicationCommand(def cmd.Definition) *discordgo.ApplicationCommand {
	ac := &discordgo.ApplicationCommand{
		Type:        discordgo.ChatApplicationCommand,
		Name:        def.Name,
		Description: def.Description,
	}
	for _, o := range def.Options {
		opt := &discordgo.ApplicationCommandOption{
			Type:        optionTypes[o.Type],
			Name:        o.Name,
			Description: o.Description,
			Required:    o.Required,
		}
		for _, c := range o.Choices {
			opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: c.Name, Value: c.Value})
		}
		ac.Options = append(ac.Options, opt)
	}
	return ac
}

// fromApplicationCommand converts a remote command. Option kinds the core does
// not model (subcommands, attachments) map to type 0, so such commands always
// differ from any local definition and get replaced.
func fromApplicationCommand(ac *discordgo.ApplicationCommand) cmd.RemoteCommand {
	rc := cmd.RemoteCommand{ID: ac.ID, Definition: cmd.Definition{Name: ac.Name, Description: ac.Description}}
	for _, o := range ac.Options {
		opt := cmd.Option{
			Name:        o.Name,
			Description: o.Description,
			Type:        localType(o.Type),
			Required:    o.Required,
		}
		for _, c := range o.Choices {
			opt.Choices = append(opt.Choices, cmd.Choice{Name: c.Name, Value: c.Value})
		}
		rc.Options = append(rc.Options, opt)
	}
	return rc
}

func localType(t discordgo.ApplicationCommandOptionType) cmd.OptionType {
	for local, remote := range optionTypes {
		if remote == t {
			return local
		}
	}
	return 0
}
