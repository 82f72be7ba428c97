package web

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/url"
	"time"

	ws "github.com/gorilla/websocket"
)

// Client follows the event stream of a running assistant and redials when
// the connection drops.
type Client struct {
	url    string
	reconn time.Duration
	conn   *ws.Conn
}

// StreamURL turns a web chat address into its websocket stream URL.
func StreamURL(addr, userID string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/ws"}
	if userID != "" {
		u.RawQuery = url.Values{"user_id": {userID}}.Encode()
	}
	return u.String()
}

func Dial(ctx context.Context, streamURL string, reconn time.Duration) (*Client, error) {
	if reconn <= 0 {
		reconn = time.Second
	}
	c := &Client{url: streamURL, reconn: reconn}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", streamURL, err)
	}
	c.conn = conn
	return c, nil
}

// Next blocks for the next frame, reconnecting on closed connections until
// ctx is done.
func (c *Client) Next(ctx context.Context) (Frame, error) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Frame{}, ctx.Err()
			}
			if !IsClosed(err) {
				return Frame{}, err
			}
			log.Warn("Stream closed, reconnecting", "url", c.url)
			if err := c.redial(ctx); err != nil {
				return Frame{}, err
			}
			continue
		}

		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			log.Debug("Bad frame", "msg", string(msg), "err", err)
			continue
		}
		return f, nil
	}
}

func (c *Client) redial(ctx context.Context) error {
	c.conn.Close()
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.conn = conn
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconn):
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func IsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
