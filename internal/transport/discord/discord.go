package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"coinforge/internal/transport"

	"github.com/bwmarrin/discordgo"
)

const (
	Platform       = "discord"
	maxMessageSize = 2000
)

type Bot struct {
	session  *discordgo.Session
	commands transport.Commands
	log      *slog.Logger
}

func New(token string, commands transport.Commands, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	return &Bot{session: session, commands: commands, log: logger.With("transport", Platform)}, nil
}

// Run connects the gateway and serves commands until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	remove := b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessage(ctx, s, m)
	})
	defer remove()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	b.log.Info("discord bot connected")
	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		b.log.Warn("close discord gateway", "err", err)
	}
	return nil
}

type sender interface {
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func (b *Bot) onMessage(ctx context.Context, s sender, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	text, ok := transport.Dispatch(ctx, b.commands, b.log, Platform, m.Author.ID, m.Content, m.ID)
	if !ok {
		return
	}
	for _, part := range transport.Chunk(text, maxMessageSize) {
		if _, err := s.ChannelMessageSendReply(m.ChannelID, part, m.Reference()); err != nil {
			b.log.Warn("send reply failed", "channel_id", m.ChannelID, "err", err)
			return
		}
	}
}
