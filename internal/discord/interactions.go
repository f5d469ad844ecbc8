package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/disbot/internal/gateway"
	"github.com/keshon/disbot/pkg/cmd"
)

const (
	// initialWindow is how long Discord waits for the first interaction response.
	initialWindow = 3 * time.Second
	// tokenLifetime is how long an interaction token accepts edits and followups.
	tokenLifetime = 15 * time.Minute
)

// interactionResponder answers a slash command. Until the first response it
// lives inside the initial window; afterwards the interaction token allows
// edits and followups for fifteen minutes.
type interactionResponder struct {
	s        *discordgo.Session
	i        *discordgo.Interaction
	received time.Time

	mu       sync.Mutex
	deferred bool
	deadline time.Time
}

func newInteractionResponder(s *discordgo.Session, i *discordgo.Interaction) *interactionResponder {
	now := time.Now()
	return &interactionResponder{s: s, i: i, received: now, deadline: now.Add(initialWindow)}
}

func (r *interactionResponder) Acknowledge(ctx context.Context, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return r.fail(err)
	}

	r.mu.Lock()
	r.deferred = true
	r.deadline = r.received.Add(tokenLifetime)
	r.mu.Unlock()
	return nil
}

// Respond sends the reply, or after Acknowledge edits the deferred message.
// A zero reply after Acknowledge deletes the "thinking" placeholder. The
// ephemeral flag is fixed by Acknowledge and ignored when editing.
func (r *interactionResponder) Respond(ctx context.Context, reply cmd.Reply) error {
	r.mu.Lock()
	deferred := r.deferred
	r.mu.Unlock()

	var err error
	switch {
	case deferred && reply.IsZero():
		err = r.s.InteractionResponseDelete(r.i, discordgo.WithContext(ctx))
	case deferred:
		content := reply.Content
		_, err = r.s.InteractionResponseEdit(r.i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx))
	default:
		err = r.s.InteractionRespond(r.i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: reply.Content, Flags: flags(reply)},
		}, discordgo.WithContext(ctx))
	}
	if err != nil {
		return r.fail(err)
	}

	r.mu.Lock()
	r.deadline = r.received.Add(tokenLifetime)
	r.mu.Unlock()
	return nil
}

func (r *interactionResponder) Followup(ctx context.Context, reply cmd.Reply) error {
	_, err := r.s.FollowupMessageCreate(r.i, true, &discordgo.WebhookParams{
		Content: reply.Content,
		Flags:   flags(reply),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *interactionResponder) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

func (r *interactionResponder) fail(err error) error {
	return &gateway.DeliveryError{InvocationID: r.i.ID, Err: classify(err)}
}

func flags(reply cmd.Reply) discordgo.MessageFlags {
	if reply.Ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

// messageResponder answers a prefix command with channel messages. Messages
// have no response window and cannot be ephemeral.
type messageResponder struct {
	s *discordgo.Session
	m *discordgo.Message
}

func newMessageResponder(s *discordgo.Session, m *discordgo.Message) *messageResponder {
	return &messageResponder{s: s, m: m}
}

// Acknowledge shows the typing indicator.
func (r *messageResponder) Acknowledge(ctx context.Context, _ bool) error {
	if err := r.s.ChannelTyping(r.m.ChannelID, discordgo.WithContext(ctx)); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *messageResponder) Respond(ctx context.Context, reply cmd.Reply) error {
	if reply.IsZero() {
		return nil
	}
	if _, err := r.s.ChannelMessageSendReply(r.m.ChannelID, reply.Content, r.m.Reference(), discordgo.WithContext(ctx)); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *messageResponder) Followup(ctx context.Context, reply cmd.Reply) error {
	if _, err := r.s.ChannelMessageSend(r.m.ChannelID, reply.Content, discordgo.WithContext(ctx)); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *messageResponder) Deadline() time.Time { return time.Time{} }

func (r *messageResponder) fail(err error) error {
	return &gateway.DeliveryError{InvocationID: r.m.ID, Err: classify(err)}
}
