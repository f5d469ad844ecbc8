package discord

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/disbot/pkg/cmd"
)

func TestWithPermissions(t *testing.T) {
	h := cmd.Apply(cmd.Static(cmd.Text("ok")), WithPermissions(discordgo.PermissionManageGuild))

	tests := []struct {
		name  string
		scope cmd.Scope
		perms int64
		ok    bool
	}{
		{"direct message", cmd.Global(), 0, false},
		{"direct message as administrator", cmd.Global(), discordgo.PermissionAdministrator, true},
		{"holds permission", cmd.Guild("42"), discordgo.PermissionManageGuild | discordgo.PermissionSendMessages, true},
		{"administrator", cmd.Guild("42"), discordgo.PermissionAdministrator, true},
		{"missing", cmd.Guild("42"), discordgo.PermissionSendMessages, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := cmd.NewInvocation(cmd.InvocationParams{
				Command: "sync",
				Scope:   tt.scope,
				Caller:  cmd.Caller{UserID: "u1", Permissions: tt.perms},
			})
			r, err := h.Handle(context.Background(), inv)
			if err != nil {
				t.Fatal(err)
			}
			if tt.ok && r.Content != "ok" {
				t.Errorf("expected the command to run, got %+v", r)
			}
			if !tt.ok && (!r.Ephemeral || !strings.Contains(r.Content, "Manage Server")) {
				t.Errorf("expected an ephemeral refusal, got %+v", r)
			}
		})
	}
}
