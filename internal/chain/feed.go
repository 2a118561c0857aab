package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stacks-whale-intel/internal/domain"
)

// Feed event kinds emitted by the live transaction feed.
type FeedEventKind string

const (
	FeedBlock      FeedEventKind = "block"
	FeedMicroblock FeedEventKind = "microblock"
	FeedAddressTx  FeedEventKind = "address-transaction"
)

// FeedEvent is one push message from the live feed, already normalized.
type FeedEvent struct {
	Kind    FeedEventKind
	Height  int64              // set for FeedBlock
	Address string             // set for FeedAddressTx
	Tx      domain.Transaction // set for FeedAddressTx
}

// FeedConn is a single live-feed connection. It deliberately does not
// reconnect: connection lifecycle is owned by the monitor's state machine,
// which re-dials and resubscribes on failure.
type FeedConn interface {
	// SubscribeBlocks requests the block heartbeat channel.
	SubscribeBlocks() error
	// SubscribeAddress requests address-transaction events for one principal.
	SubscribeAddress(address string) error
	// Next blocks for the next event. A transport error invalidates the
	// connection; callers must Close and re-dial.
	Next() (*FeedEvent, error)
	Close() error
}

// FeedDialer opens feed connections. The monitor takes a dialer rather than
// a connection so tests can hand it an in-process feed.
type FeedDialer interface {
	Dial(ctx context.Context) (FeedConn, error)
}

// WSFeedDialer dials the chain's websocket transaction feed.
type WSFeedDialer struct {
	Endpoint         string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadTimeout bounds the gap between inbound messages; the block
	// heartbeat keeps a healthy connection well under it.
	ReadTimeout time.Duration
}

// Dial connects to the feed endpoint.
func (d *WSFeedDialer) Dial(ctx context.Context) (FeedConn, error) {
	handshake := d.HandshakeTimeout
	if handshake == 0 {
		handshake = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshake}

	conn, _, err := dialer.DialContext(ctx, d.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("feed dial: %w", err)
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}
	readTimeout := d.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 5 * time.Minute
	}

	return &wsFeedConn{conn: conn, writeTimeout: writeTimeout, readTimeout: readTimeout}, nil
}

type wsFeedConn struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// feedSubscribeRequest is the subscribe handshake message.
type feedSubscribeRequest struct {
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Address string `json:"address,omitempty"`
}

// rawFeedMessage is the wire shape of inbound feed messages.
type rawFeedMessage struct {
	Event   string          `json:"event"`
	Height  int64           `json:"height"`
	Address string          `json:"address"`
	Tx      *rawTransaction `json:"tx"`
}

func (c *wsFeedConn) SubscribeBlocks() error {
	return c.writeJSON(feedSubscribeRequest{Event: "subscribe", Topic: "block"})
}

func (c *wsFeedConn) SubscribeAddress(address string) error {
	return c.writeJSON(feedSubscribeRequest{
		Event:   "subscribe",
		Topic:   "address-transaction",
		Address: address,
	})
}

func (c *wsFeedConn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("feed write: %w", err)
	}
	return nil
}

func (c *wsFeedConn) Next() (*FeedEvent, error) {
	for {
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("feed read: %w", err)
		}

		var raw rawFeedMessage
		if err := json.Unmarshal(message, &raw); err != nil {
			// Malformed frame; skip rather than kill the connection.
			continue
		}

		switch raw.Event {
		case "block":
			return &FeedEvent{Kind: FeedBlock, Height: raw.Height}, nil
		case "microblock":
			return &FeedEvent{Kind: FeedMicroblock}, nil
		case "address-transaction":
			if raw.Tx == nil {
				continue
			}
			return &FeedEvent{
				Kind:    FeedAddressTx,
				Address: raw.Address,
				Tx:      normalizeTransaction(raw.Tx),
			}, nil
		default:
			// Subscription acks and unknown events are not business input.
			continue
		}
	}
}

func (c *wsFeedConn) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
