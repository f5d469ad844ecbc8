package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/keshon/disbot/pkg/cmd"
)

// Entry is one static command from the catalog file.
type Entry struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Reply       string `mapstructure:"reply"`
	Ephemeral   bool   `mapstructure:"ephemeral"`
	// Guild limits the command to one guild; empty means global.
	Guild string `mapstructure:"guild"`
}

// LoadCatalog reads entries from a YAML, JSON or TOML file (by extension):
//
//	commands:
//	  - name: rules
//	    description: Shows the server rules
//	    reply: "Be nice, {user}."
//	    ephemeral: true
func LoadCatalog(path string) ([]Entry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read command catalog: %w", err)
	}
	var entries []Entry
	if err := v.UnmarshalKey("commands", &entries); err != nil {
		return nil, fmt.Errorf("decode command catalog: %w", err)
	}
	return entries, nil
}

// RegisterCatalog registers every entry with mws applied. Bad entries are
// skipped and reported together.
func RegisterCatalog(reg *cmd.Registry, entries []Entry, mws ...cmd.Middleware) error {
	var errs []error
	for _, e := range entries {
		if e.Reply == "" {
			errs = append(errs, fmt.Errorf("catalog command %q has no reply", e.Name))
			continue
		}
		desc := e.Description
		if desc == "" {
			desc = "Replies with a fixed message"
		}
		d := cmd.Descriptor{
			Definition: cmd.Definition{Name: strings.ToLower(e.Name), Description: desc},
			Scope:      cmd.Guild(e.Guild),
			Handler:    cmd.Apply(staticReply(e), mws...),
		}
		if err := reg.Register(d); err != nil {
			errs = append(errs, fmt.Errorf("catalog command %q: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

// staticReply fills {user} and {channel} placeholders.
func staticReply(e Entry) cmd.HandlerFunc {
	return func(_ context.Context, inv *cmd.Invocation) (cmd.Reply, error) {
		caller := inv.Caller()
		content := strings.NewReplacer(
			"{user}", caller.Username,
			"{channel}", "<#"+caller.ChannelID+">",
		).Replace(e.Reply)
		return cmd.Reply{Content: content, Ephemeral: e.Ephemeral}, nil
	}
}
