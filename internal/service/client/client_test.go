package client

import (
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lockchat/internal/envelope"
	"lockchat/internal/model"
	"lockchat/internal/protocol/handshake"
	"lockchat/internal/wire"
)

func testDEK(t *testing.T) []byte {
	t.Helper()
	dek := make([]byte, 32)
	_, err := rand.Read(dek)
	require.NoError(t, err)
	return dek
}

// acceptOne runs a minimal server side: handshake one connection, hand it to
// the test, close the listener.
func acceptOne(t *testing.T, dek []byte) (addr string, conns <-chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if _, err := handshake.Accept(conn, dek, 0, 2*time.Second); err != nil {
			conn.Close()
			return
		}
		ch <- conn
	}()
	return ln.Addr().String(), ch
}

func nextEvent(t *testing.T, c *Client) model.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for an event")
		return model.Event{}
	}
}

func TestClient_BadFrameIsNonFatal(t *testing.T) {
	dek := testDEK(t)
	addr, conns := acceptOne(t, dek)

	c, err := Dial(addr, dek, "alice", Options{})
	require.NoError(t, err)
	defer c.Close()

	serverConn := <-conns
	defer serverConn.Close()

	// a garbled frame surfaces as an inline error, not a teardown
	require.NoError(t, wire.WriteFrame(serverConn, []byte("not an envelope")))
	ev := nextEvent(t, c)
	require.Equal(t, model.KindError, ev.Kind)

	// the session keeps working afterwards
	require.NoError(t, envelope.SendSealed(serverConn, dek, "bob", "still alive"))
	ev = nextEvent(t, c)
	require.Equal(t, model.KindMessage, ev.Kind)
	require.Equal(t, "bob", ev.Sender)
	require.Equal(t, "still alive", ev.Text)
}

func TestClient_TamperedEnvelopeIsNonFatal(t *testing.T) {
	dek := testDEK(t)
	addr, conns := acceptOne(t, dek)

	c, err := Dial(addr, dek, "alice", Options{})
	require.NoError(t, err)
	defer c.Close()

	serverConn := <-conns
	defer serverConn.Close()

	env, err := envelope.Seal(dek, "bob", "hello")
	require.NoError(t, err)
	env.Username = "mallory" // breaks the AAD binding
	payload, err := env.Marshal()
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(serverConn, payload))

	ev := nextEvent(t, c)
	require.Equal(t, model.KindError, ev.Kind)
}

func TestClient_ServerGoneIsTerminal(t *testing.T) {
	dek := testDEK(t)
	addr, conns := acceptOne(t, dek)

	c, err := Dial(addr, dek, "alice", Options{})
	require.NoError(t, err)
	defer c.Close()

	serverConn := <-conns
	serverConn.Close()

	ev := nextEvent(t, c)
	require.Equal(t, model.KindDisconnect, ev.Kind)

	_, ok := <-c.Events()
	require.False(t, ok, "event channel should close after disconnect")
}

func TestClient_SendProducesVerifiableEnvelope(t *testing.T) {
	dek := testDEK(t)
	addr, conns := acceptOne(t, dek)

	c, err := Dial(addr, dek, "alice", Options{})
	require.NoError(t, err)
	defer c.Close()

	serverConn := <-conns
	defer serverConn.Close()

	require.NoError(t, c.Send("onwards"))

	sender, text, err := envelope.ReadSealed(serverConn, dek, 0)
	require.NoError(t, err)
	require.Equal(t, "alice", sender)
	require.Equal(t, "onwards", text)
}
