package whatsapp

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"coinforge/internal/bot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

type fakeCommands struct {
	got []bot.Command
}

func (f *fakeCommands) Handle(_ context.Context, cmd bot.Command) (bot.Reply, error) {
	f.got = append(f.got, cmd)
	return bot.Reply{Success: true, Message: "ok " + cmd.Text}, nil
}

type outgoing struct {
	chat types.JID
	text string
}

type fakeSender struct {
	sent []outgoing
}

func (f *fakeSender) send(_ context.Context, chat types.JID, text string) error {
	f.sent = append(f.sent, outgoing{chat: chat, text: text})
	return nil
}

func newTestBot() (*Bot, *fakeCommands) {
	cmds := &fakeCommands{}
	return &Bot{commands: cmds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}, cmds
}

func incoming(text string, fromMe bool, extended bool) *events.Message {
	chat := types.NewJID("120363000000000000", types.GroupServer)
	sender := types.NewJID("15550001111", types.DefaultUserServer)
	msg := &waE2E.Message{Conversation: proto.String(text)}
	if extended {
		msg = &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String(text)}}
	}
	evt := &events.Message{Message: msg}
	evt.Info.Chat = chat
	evt.Info.Sender = sender
	evt.Info.IsFromMe = fromMe
	evt.Info.ID = types.MessageID("ABC123")
	return evt
}

func TestOnMessage_RepliesInChat(t *testing.T) {
	b, cmds := newTestBot()
	s := &fakeSender{}

	b.onMessage(context.Background(), s, incoming(".market", false, false))

	require.Len(t, cmds.got, 1)
	assert.Equal(t, "15550001111", cmds.got[0].RawUserID)
	assert.Equal(t, Platform, cmds.got[0].Platform)
	assert.Equal(t, "whatsapp:ABC123", cmds.got[0].IdempotencyKey)
	require.Len(t, s.sent, 1)
	assert.Equal(t, types.GroupServer, s.sent[0].chat.Server)
	assert.Equal(t, "ok .market", s.sent[0].text)
}

func TestOnMessage_ReadsExtendedText(t *testing.T) {
	b, cmds := newTestBot()
	s := &fakeSender{}

	b.onMessage(context.Background(), s, incoming(".balance", false, true))

	require.Len(t, cmds.got, 1)
	assert.Equal(t, ".balance", cmds.got[0].Text)
}

func TestOnMessage_SkipsOwnAndPlainMessages(t *testing.T) {
	b, cmds := newTestBot()
	s := &fakeSender{}

	b.onMessage(context.Background(), s, incoming(".balance", true, false))
	b.onMessage(context.Background(), s, incoming("hello", false, false))

	assert.Empty(t, cmds.got)
	assert.Empty(t, s.sent)
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), "", &fakeCommands{}, nil)
	assert.Error(t, err)
}
