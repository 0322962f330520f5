package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"coinforge/internal/feed"
	"coinforge/internal/game"

	"github.com/gorilla/websocket"
)

// StreamEvent is one frame of the price stream: the initial board or a tick.
type StreamEvent struct {
	Snapshot *game.MarketView
	Updates  []game.PriceUpdate
	Err      error
}

func (c *Client) streamURL() (string, error) {
	switch {
	case strings.HasPrefix(c.BaseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.BaseURL, "https://") + "/v1/stocks/stream", nil
	case strings.HasPrefix(c.BaseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.BaseURL, "http://") + "/v1/stocks/stream", nil
	default:
		return "", fmt.Errorf("unsupported api base url %q", c.BaseURL)
	}
}

// Stream opens the price stream. The channel closes when ctx ends or the
// connection drops; a drop is reported as a final event with Err set.
func (c *Client) Stream(ctx context.Context) (<-chan StreamEvent, error) {
	u, err := c.streamURL()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, &APIError{Status: resp.StatusCode, Message: "stream handshake rejected"}
		}
		return nil, err
	}

	out := make(chan StreamEvent, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					out <- StreamEvent{Err: err}
				}
				return
			}
			ev, err := decodeFrame(raw)
			if err != nil {
				ev = StreamEvent{Err: err}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeFrame(raw []byte) (StreamEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return StreamEvent{}, fmt.Errorf("decode stream frame: %w", err)
	}
	switch head.Type {
	case "snapshot":
		var snap struct {
			Market game.MarketView `json:"market"`
		}
		if err := json.Unmarshal(raw, &snap); err != nil {
			return StreamEvent{}, fmt.Errorf("decode snapshot: %w", err)
		}
		return StreamEvent{Snapshot: &snap.Market}, nil
	case "prices":
		var msg feed.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return StreamEvent{}, fmt.Errorf("decode prices: %w", err)
		}
		return StreamEvent{Updates: msg.Updates}, nil
	default:
		return StreamEvent{}, fmt.Errorf("unknown stream frame %q", head.Type)
	}
}
