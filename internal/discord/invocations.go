package discord

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/disbot/pkg/cmd"
)

// interactionInvocation builds an invocation from a slash command.
func interactionInvocation(s *discordgo.Session, i *discordgo.Interaction) *cmd.Invocation {
	data := i.ApplicationCommandData()
	return cmd.NewInvocation(cmd.InvocationParams{
		ID:        i.ID,
		Command:   data.Name,
		Scope:     scopeOf(i.GuildID),
		Args:      interactionArgs(data.Options),
		Caller:    interactionCaller(i),
		Responder: newInteractionResponder(s, i),
	})
}

func interactionCaller(i *discordgo.Interaction) cmd.Caller {
	c := cmd.Caller{ChannelID: i.ChannelID}
	user := i.User
	if i.Member != nil {
		c.Permissions = i.Member.Permissions
		if i.Member.User != nil {
			user = i.Member.User
		}
	}
	if user != nil {
		c.UserID, c.Username = user.ID, user.Username
	}
	return c
}

// interactionArgs flattens top-level options into plain Go values: strings,
// int64, float64, bool, and IDs (as strings) for users, channels and roles.
func interactionArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	args := make(map[string]any, len(opts))
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionString:
			args[o.Name] = o.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			args[o.Name] = o.IntValue()
		case discordgo.ApplicationCommandOptionNumber:
			args[o.Name] = o.FloatValue()
		case discordgo.ApplicationCommandOptionBoolean:
			args[o.Name] = o.BoolValue()
		case discordgo.ApplicationCommandOptionUser,
			discordgo.ApplicationCommandOptionChannel,
			discordgo.ApplicationCommandOptionRole,
			discordgo.ApplicationCommandOptionMentionable:
			if id, ok := o.Value.(string); ok {
				args[o.Name] = id
			}
		}
	}
	return args
}

// messageInvocation builds an invocation from a prefix message.
func messageInvocation(s *discordgo.Session, m *discordgo.Message, name string, args map[string]any) *cmd.Invocation {
	caller := cmd.Caller{ChannelID: m.ChannelID}
	if m.Author != nil {
		caller.UserID, caller.Username = m.Author.ID, m.Author.Username
		if m.GuildID != "" && s.State != nil {
			if perms, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID); err == nil {
				caller.Permissions = perms
			}
		}
	}
	return cmd.NewInvocation(cmd.InvocationParams{
		ID:        m.ID,
		Command:   name,
		Scope:     scopeOf(m.GuildID),
		Args:      args,
		Caller:    caller,
		Responder: newMessageResponder(s, m),
	})
}

// parsePrefixed splits "!name a b c" into the lower-cased command name and
// its words.
func parsePrefixed(content, prefix string) (string, []string, bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// bindPositional maps words onto opts in declaration order. A trailing string
// option takes the rest of the line. Words that do not parse as the option's
// type are kept as strings; extra words go to "args".
func bindPositional(opts []cmd.Option, words []string) map[string]any {
	args := make(map[string]any, len(opts))
	i := 0
	for n, opt := range opts {
		if i >= len(words) {
			break
		}
		if n == len(opts)-1 && opt.Type == cmd.OptionString {
			args[opt.Name] = strings.Join(words[i:], " ")
			return args
		}
		args[opt.Name] = convertWord(opt.Type, words[i])
		i++
	}
	if i < len(words) {
		args["args"] = strings.Join(words[i:], " ")
	}
	return args
}

func convertWord(t cmd.OptionType, w string) any {
	switch t {
	case cmd.OptionInteger:
		if v, err := strconv.ParseInt(w, 10, 64); err == nil {
			return v
		}
	case cmd.OptionNumber:
		if v, err := strconv.ParseFloat(w, 64); err == nil {
			return v
		}
	case cmd.OptionBoolean:
		if v, err := strconv.ParseBool(w); err == nil {
			return v
		}
	case cmd.OptionUser, cmd.OptionChannel, cmd.OptionRole:
		return mentionID(w)
	}
	return w
}

// mentionID strips mention syntax: <@123>, <@!123>, <#123> and <@&123>.
func mentionID(w string) string {
	if !strings.HasPrefix(w, "<") || !strings.HasSuffix(w, ">") {
		return w
	}
	w = strings.TrimSuffix(strings.TrimPrefix(w, "<"), ">")
	return strings.TrimLeft(w, "@!#&")
}
