package transport

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"coinforge/internal/bot"
)

// Commands is the part of bot.Router a chat transport needs.
type Commands interface {
	Handle(ctx context.Context, cmd bot.Command) (bot.Reply, error)
}

const commandTimeout = 15 * time.Second

// Dispatch runs one incoming chat message. The platform message id doubles
// as the idempotency key so a redelivered message is never applied twice.
// ok is false when the message is not a command and nothing should be sent.
func Dispatch(ctx context.Context, h Commands, logger *slog.Logger, platform, user, text, messageID string) (string, bool) {
	if !bot.IsCommand(text) {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := bot.Command{Platform: platform, RawUserID: user, Text: text}
	if messageID = strings.TrimSpace(messageID); messageID != "" {
		cmd.IdempotencyKey = platform + ":" + messageID
	}
	reply, err := h.Handle(ctx, cmd)
	if err != nil {
		logger.Error("chat command failed", "platform", platform, "command", reply.Command, "err", err)
	}
	if reply.Message == "" {
		return "", false
	}
	return reply.Message, true
}

// Chunk splits text into pieces of at most limit bytes, preferring line
// breaks so tables stay readable.
func Chunk(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var out []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			cut := limit
			for cut > 0 && !utf8Start(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
