// Package client implements the initiator side of a chat session: dial,
// handshake, then two independent directions: sealed frames out, decrypted
// display events in.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"lockchat/internal/envelope"
	"lockchat/internal/model"
	"lockchat/internal/protocol/handshake"
	"lockchat/internal/utils/log"
	"lockchat/internal/wire"
)

type (
	// Options tune a Client. Zero values pick sensible defaults.
	Options struct {
		MaxFrameSize     uint32
		HandshakeTimeout time.Duration
	}

	// Client is one authenticated connection to a chat server. The only
	// state its two directions share is the read-only DEK and the two
	// half-duplex sides of the connection.
	Client struct {
		conn     net.Conn
		dek      []byte
		username string
		max      uint32

		// writeMu serializes outbound frames
		writeMu sync.Mutex

		events    chan model.Event
		closeOnce sync.Once
	}
)

// Dial connects to addr, proves possession of dek, and starts the receive
// loop. The returned client is ready to Send.
func Dial(addr string, dek []byte, username string, opts Options) (*Client, error) {
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = wire.MaxFrameSize
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = handshake.DefaultTimeout
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if err := handshake.Initiate(conn, dek, username, opts.MaxFrameSize, opts.HandshakeTimeout); err != nil {
		conn.Close()
		return nil, err
	}

	c := &Client{
		conn:     conn,
		dek:      dek,
		username: username,
		max:      opts.MaxFrameSize,
		events:   make(chan model.Event, 64),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers display events to the UI. The channel closes after a
// terminal disconnect event.
func (c *Client) Events() <-chan model.Event {
	return c.events
}

// Send seals text under the shared key with our username bound in and writes
// it as one frame.
func (c *Client) Send(text string) error {
	env, err := envelope.Seal(c.dek, c.username, text)
	if err != nil {
		return err
	}
	payload, err := env.Marshal()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteFrame(c.conn, payload)
}

// Close tears the connection down. Closing our side is enough to unblock the
// receive loop; no cooperation from the server is needed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// readLoop turns inbound frames into display events. One undecryptable frame
// is surfaced and skipped; only transport loss ends the loop.
func (c *Client) readLoop() {
	defer close(c.events)

	for {
		payload, err := wire.ReadFrame(c.conn, c.max)
		if err != nil {
			log.Debug("connection closed", zap.Error(err))
			c.events <- model.NewDisconnect("Connection to server lost")
			return
		}

		var plaintext string
		env, err := envelope.Unmarshal(payload)
		if err == nil {
			plaintext, err = envelope.Open(c.dek, env)
		}
		if err != nil {
			log.Debug("dropping bad frame", zap.Error(err))
			c.events <- model.NewError("could not decrypt an incoming message")
			continue
		}

		c.events <- model.NewMessage(env.Username, plaintext)
	}
}
