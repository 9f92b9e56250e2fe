package server

import (
	"net"
	"sync"
	"time"

	"lockchat/internal/wire"
)

type (
	// Session is the server-side state for one authenticated client. The
	// registry owns all sessions exclusively; nothing outside this package
	// ever holds one.
	Session struct {
		ID        string
		Username  string
		Connected time.Time

		conn net.Conn

		// writeMu serializes frames to this client so concurrent broadcasts
		// cannot interleave bytes.
		writeMu sync.Mutex
	}

	// SessionInfo is the externally visible snapshot of a session, served by
	// the admin endpoint.
	SessionInfo struct {
		ID         string    `json:"id"`
		Username   string    `json:"username"`
		RemoteAddr string    `json:"remote_addr"`
		Connected  time.Time `json:"connected"`
	}
)

// writeFrame sends one frame to the client, bounded by timeout so a stalled
// peer cannot pin the writer forever.
func (s *Session) writeFrame(payload []byte, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return wire.WriteFrame(s.conn, payload)
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:         s.ID,
		Username:   s.Username,
		RemoteAddr: s.conn.RemoteAddr().String(),
		Connected:  s.Connected,
	}
}
