package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/disbot/pkg/cmd"
)

// PermissionNames labels the permissions commands commonly require.
var PermissionNames = map[int64]string{
	discordgo.PermissionAdministrator:   "Administrator",
	discordgo.PermissionManageGuild:     "Manage Server",
	discordgo.PermissionManageChannels:  "Manage Channels",
	discordgo.PermissionManageRoles:     "Manage Roles",
	discordgo.PermissionManageMessages:  "Manage Messages",
	discordgo.PermissionManageWebhooks:  "Manage Webhooks",
	discordgo.PermissionKickMembers:     "Kick Members",
	discordgo.PermissionBanMembers:      "Ban Members",
	discordgo.PermissionModerateMembers: "Moderate Members",
	discordgo.PermissionSendMessages:    "Send Messages",
}

// WithPermissions lets a command through when the caller holds any of perms
// or is an administrator. Direct messages carry no permissions, so guarded
// commands are refused there.
func WithPermissions(perms ...int64) cmd.Middleware {
	return func(next cmd.Handler) cmd.Handler {
		return cmd.HandlerFunc(func(ctx context.Context, inv *cmd.Invocation) (cmd.Reply, error) {
			if len(perms) == 0 {
				return next.Handle(ctx, inv)
			}
			have := inv.Caller().Permissions
			if have&discordgo.PermissionAdministrator != 0 {
				return next.Handle(ctx, inv)
			}
			for _, p := range perms {
				if have&p != 0 {
					return next.Handle(ctx, inv)
				}
			}

			names := make([]string, 0, len(perms))
			for _, p := range perms {
				if name, ok := PermissionNames[p]; ok {
					names = append(names, name)
				} else {
					names = append(names, fmt.Sprintf("0x%x", p))
				}
			}
			return cmd.Ephemeral("You need one of these permissions: " + strings.Join(names, ", ")), nil
		})
	}
}
