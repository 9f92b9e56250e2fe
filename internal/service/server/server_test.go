package server

import (
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lockchat/internal/history"
	"lockchat/internal/model"
	"lockchat/internal/service/client"
)

func testDEK(t *testing.T) []byte {
	t.Helper()
	dek := make([]byte, 32)
	_, err := rand.Read(dek)
	require.NoError(t, err)
	return dek
}

func startServer(t *testing.T, dek []byte, opts Options) (*Server, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(dek, opts)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	return srv, ln.Addr().String()
}

func dialClient(t *testing.T, addr string, dek []byte, username string) *client.Client {
	t.Helper()

	c, err := client.Dial(addr, dek, username, client.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// nextMessage drains events until a chat message arrives, skipping local
// status events and relayed "Server" notices (joins, departures).
func nextMessage(t *testing.T, c *client.Client) model.Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "event channel closed while waiting for a message")
			if ev.Kind == model.KindMessage && ev.Sender != "Server" {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for a message")
		}
	}
}

// expectNoMessage asserts that no chat message arrives within the window.
func expectNoMessage(t *testing.T, c *client.Client, window time.Duration) {
	t.Helper()

	timeout := time.After(window)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			if ev.Kind == model.KindMessage && ev.Sender != "Server" {
				t.Fatalf("unexpected message %q from %q", ev.Text, ev.Sender)
			}
		case <-timeout:
			return
		}
	}
}

// awaitSessions waits until the registry holds n sessions.
func awaitSessions(t *testing.T, srv *Server, n int) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(srv.Sessions()) == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry never reached %d sessions (have %d)", n, len(srv.Sessions()))
}

func TestBroadcast_FanOutExcludesSender(t *testing.T) {
	dek := testDEK(t)
	srv, addr := startServer(t, dek, Options{})

	a := dialClient(t, addr, dek, "A")
	b := dialClient(t, addr, dek, "B")
	c := dialClient(t, addr, dek, "C")
	awaitSessions(t, srv, 3)

	require.NoError(t, a.Send("hi"))

	for _, peer := range []*client.Client{b, c} {
		ev := nextMessage(t, peer)
		require.Equal(t, "A", ev.Sender)
		require.Equal(t, "hi", ev.Text)
	}

	// pure fan-out: the sender never hears its own message back
	expectNoMessage(t, a, 300*time.Millisecond)
}

func TestBroadcast_DisconnectIsolation(t *testing.T) {
	dek := testDEK(t)
	srv, addr := startServer(t, dek, Options{})

	a := dialClient(t, addr, dek, "A")
	b := dialClient(t, addr, dek, "B")
	c := dialClient(t, addr, dek, "C")
	awaitSessions(t, srv, 3)

	require.NoError(t, b.Close())
	awaitSessions(t, srv, 2)

	require.NoError(t, a.Send("still here"))

	ev := nextMessage(t, c)
	require.Equal(t, "A", ev.Sender)
	require.Equal(t, "still here", ev.Text)

	// B's departure must not error anyone else's send path
	require.NoError(t, c.Send("ack"))
	ev = nextMessage(t, a)
	require.Equal(t, "C", ev.Sender)
	require.Equal(t, "ack", ev.Text)
}

func TestHandshake_WrongKeyRefused(t *testing.T) {
	srv, addr := startServer(t, testDEK(t), Options{})

	// the protocol has no acknowledgement frame, so the dialer only learns
	// of the rejection when the server hangs up on the failed tag check
	c, err := client.Dial(addr, testDEK(t), "intruder", client.Options{})
	if err == nil {
		deadline := time.After(3 * time.Second)
		for disconnected := false; !disconnected; {
			select {
			case ev, ok := <-c.Events():
				if !ok || ev.Kind == model.KindDisconnect {
					disconnected = true
				}
			case <-deadline:
				t.Fatal("server never dropped the unauthenticated dialer")
			}
		}
		c.Close()
	}
	require.Empty(t, srv.Sessions())
}

func TestServer_PerSessionOrderingPreserved(t *testing.T) {
	dek := testDEK(t)
	srv, addr := startServer(t, dek, Options{})

	a := dialClient(t, addr, dek, "A")
	b := dialClient(t, addr, dek, "B")
	awaitSessions(t, srv, 2)

	want := []string{"one", "two", "three", "four"}
	for _, text := range want {
		require.NoError(t, a.Send(text))
	}

	for _, text := range want {
		ev := nextMessage(t, b)
		require.Equal(t, text, ev.Text)
	}
}

func TestServer_HistoryReplayToLateJoiner(t *testing.T) {
	dek := testDEK(t)
	srv, addr := startServer(t, dek, Options{History: history.NewRing(10)})

	a := dialClient(t, addr, dek, "A")
	b := dialClient(t, addr, dek, "B")
	awaitSessions(t, srv, 2)

	require.NoError(t, a.Send("before you arrived"))
	ev := nextMessage(t, b)
	require.Equal(t, "before you arrived", ev.Text)

	late := dialClient(t, addr, dek, "Late")
	ev = nextMessage(t, late)
	require.Equal(t, "A", ev.Sender)
	require.Equal(t, "before you arrived", ev.Text)
}

func TestServer_OperatorBroadcastReachesEveryone(t *testing.T) {
	dek := testDEK(t)
	srv, addr := startServer(t, dek, Options{OperatorName: "op"})

	a := dialClient(t, addr, dek, "A")
	b := dialClient(t, addr, dek, "B")
	awaitSessions(t, srv, 2)

	require.NoError(t, srv.Broadcast("maintenance at noon"))

	for _, peer := range []*client.Client{a, b} {
		ev := nextMessage(t, peer)
		require.Equal(t, "op", ev.Sender)
		require.Equal(t, "maintenance at noon", ev.Text)
	}
}

func TestServer_SubscribersSeeSystemEvents(t *testing.T) {
	dek := testDEK(t)
	srv, addr := startServer(t, dek, Options{})

	events, cancel := srv.Subscribe()
	defer cancel()

	dialClient(t, addr, dek, "A")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == model.KindSystem {
				require.Contains(t, ev.Text, "A joined")
				return
			}
		case <-deadline:
			t.Fatal("no join notice observed")
		}
	}
}

func TestServer_SessionsSnapshot(t *testing.T) {
	dek := testDEK(t)
	srv, addr := startServer(t, dek, Options{})

	dialClient(t, addr, dek, "alice")
	awaitSessions(t, srv, 1)

	infos := srv.Sessions()
	require.Len(t, infos, 1)
	require.Equal(t, "alice", infos[0].Username)
	require.NotEmpty(t, infos[0].ID)
	require.NotEmpty(t, infos[0].RemoteAddr)
}
