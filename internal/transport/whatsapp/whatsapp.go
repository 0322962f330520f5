package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"coinforge/internal/transport"

	_ "github.com/lib/pq"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

const Platform = "whatsapp"

type Bot struct {
	client   *whatsmeow.Client
	commands transport.Commands
	log      *slog.Logger
	qrOut    io.Writer
}

// New opens the device store on Postgres. The first device in the store is
// reused, so pairing only happens once per database.
func New(ctx context.Context, storeDSN string, commands transport.Commands, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	storeDSN = strings.TrimSpace(storeDSN)
	if storeDSN == "" {
		return nil, fmt.Errorf("whatsapp store dsn is required")
	}
	container, err := sqlstore.New(ctx, "postgres", storeDSN, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("open whatsapp store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load whatsapp device: %w", err)
	}
	return &Bot{
		client:   whatsmeow.NewClient(device, waLog.Noop),
		commands: commands,
		log:      logger.With("transport", Platform),
		qrOut:    os.Stdout,
	}, nil
}

// Run connects, prints a pairing QR code when the device is new, and serves
// commands until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	handlerID := b.client.AddEventHandler(func(evt any) {
		if msg, ok := evt.(*events.Message); ok {
			b.onMessage(ctx, b, msg)
		}
	})
	defer b.client.RemoveEventHandler(handlerID)

	if b.client.Store.ID == nil {
		qrChan, err := b.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("whatsapp qr channel: %w", err)
		}
		if err := b.client.Connect(); err != nil {
			return fmt.Errorf("connect whatsapp: %w", err)
		}
		go b.printPairing(qrChan)
	} else if err := b.client.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp: %w", err)
	}
	b.log.Info("whatsapp bot connected")

	<-ctx.Done()
	b.client.Disconnect()
	return nil
}

func (b *Bot) printPairing(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		if item.Event == whatsmeow.QRChannelEventCode {
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, b.qrOut)
			continue
		}
		b.log.Info("whatsapp pairing", "event", item.Event)
	}
}

type sender interface {
	send(ctx context.Context, chat types.JID, text string) error
}

func (b *Bot) send(ctx context.Context, chat types.JID, text string) error {
	_, err := b.client.SendMessage(ctx, chat, &waE2E.Message{Conversation: proto.String(text)})
	return err
}

func (b *Bot) onMessage(ctx context.Context, s sender, msg *events.Message) {
	if msg.Info.IsFromMe {
		return
	}
	text := messageText(msg.Message)
	reply, ok := transport.Dispatch(ctx, b.commands, b.log, Platform, msg.Info.Sender.User, text, string(msg.Info.ID))
	if !ok {
		return
	}
	if err := s.send(ctx, msg.Info.Chat, reply); err != nil {
		b.log.Warn("send reply failed", "chat", msg.Info.Chat.String(), "err", err)
	}
}

func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if text := m.GetConversation(); text != "" {
		return text
	}
	return m.GetExtendedTextMessage().GetText()
}
