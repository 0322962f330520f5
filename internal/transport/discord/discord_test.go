package discord

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"coinforge/internal/bot"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommands struct {
	got   []bot.Command
	reply string
}

func (f *fakeCommands) Handle(_ context.Context, cmd bot.Command) (bot.Reply, error) {
	f.got = append(f.got, cmd)
	return bot.Reply{Success: true, Message: f.reply}, nil
}

type sentMessage struct {
	channel string
	content string
	ref     *discordgo.MessageReference
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, sentMessage{channel: channelID, content: content, ref: reference})
	return &discordgo.Message{}, nil
}

func newTestBot(t *testing.T, reply string) (*Bot, *fakeCommands) {
	t.Helper()
	cmds := &fakeCommands{reply: reply}
	b, err := New("token", cmds, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return b, cmds
}

func message(author *discordgo.User, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m-1",
		ChannelID: "c-1",
		GuildID:   "g-1",
		Author:    author,
		Content:   content,
	}}
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(" ", &fakeCommands{}, nil)
	assert.Error(t, err)
}

func TestOnMessage_RepliesToCommands(t *testing.T) {
	b, cmds := newTestBot(t, "Coins: 10")
	s := &fakeSender{}

	b.onMessage(context.Background(), s, message(&discordgo.User{ID: "u-1"}, ".balance"))

	require.Len(t, cmds.got, 1)
	assert.Equal(t, "u-1", cmds.got[0].RawUserID)
	assert.Equal(t, "discord:m-1", cmds.got[0].IdempotencyKey)
	require.Len(t, s.sent, 1)
	assert.Equal(t, "c-1", s.sent[0].channel)
	assert.Equal(t, "Coins: 10", s.sent[0].content)
	assert.Equal(t, "m-1", s.sent[0].ref.MessageID)
}

func TestOnMessage_IgnoresBotsAndChatter(t *testing.T) {
	b, cmds := newTestBot(t, "x")
	s := &fakeSender{}

	b.onMessage(context.Background(), s, message(&discordgo.User{ID: "u-2", Bot: true}, ".balance"))
	b.onMessage(context.Background(), s, message(&discordgo.User{ID: "u-1"}, "hi all"))

	assert.Empty(t, cmds.got)
	assert.Empty(t, s.sent)
}

func TestOnMessage_SplitsLongReplies(t *testing.T) {
	b, _ := newTestBot(t, strings.Repeat("0123456789\n", 300))
	s := &fakeSender{}

	b.onMessage(context.Background(), s, message(&discordgo.User{ID: "u-1"}, ".storage"))

	require.Len(t, s.sent, 2)
	for _, m := range s.sent {
		assert.LessOrEqual(t, len(m.content), maxMessageSize)
	}
}
