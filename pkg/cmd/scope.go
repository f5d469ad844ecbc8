package cmd

// Scope is the visibility domain of a command: Global (every server the bot
// is in) or a single guild. The zero value is Global.
type Scope struct {
	guildID string
}

// Global returns the global scope.
func Global() Scope { return Scope{} }

// Guild returns the scope of one guild. An empty id yields Global.
func Guild(id string) Scope { return Scope{guildID: id} }

// IsGlobal reports whether s is the global scope.
func (s Scope) IsGlobal() bool { return s.guildID == "" }

// GuildID returns the guild snowflake, or "" for Global.
func (s Scope) GuildID() string { return s.guildID }

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "guild:" + s.guildID
}
