package handshake

import (
	"fmt"
	"net"
	"time"

	"lockchat/internal/envelope"
	"lockchat/internal/wire"
)

// DefaultTimeout bounds a whole handshake on the accepting side so a stalled
// dialer cannot hold a goroutine forever.
const DefaultTimeout = 5 * time.Second

// Accept drives the responder side over conn and returns the username the
// peer asserted in its sealed response. Any failure leaves the machine in
// StateRejected; the caller closes the connection.
func Accept(conn net.Conn, dek []byte, max uint32, timeout time.Duration) (string, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", fmt.Errorf("handshake: set deadline: %w", err)
	}
	defer conn.SetDeadline(time.Time{})

	machine := NewServer()

	hello, err := wire.ReadFrame(conn, max)
	if err != nil {
		machine.Reject()
		return "", fmt.Errorf("handshake: read hello: %w", err)
	}
	challengeFrame, err := machine.OnHello(hello)
	if err != nil {
		return "", err
	}
	if err := wire.WriteFrame(conn, challengeFrame); err != nil {
		machine.Reject()
		return "", fmt.Errorf("handshake: write challenge: %w", err)
	}
	if err := machine.ChallengeDelivered(); err != nil {
		return "", err
	}

	username, reply, err := envelope.ReadSealed(conn, dek, max)
	if err != nil {
		machine.Reject()
		return "", fmt.Errorf("handshake: read response: %w", err)
	}
	if err := machine.OnResponse(reply); err != nil {
		return "", err
	}
	return username, nil
}

// Initiate drives the initiator side over conn, proving possession of dek and
// binding username into the response envelope.
func Initiate(conn net.Conn, dek []byte, username string, max uint32, timeout time.Duration) error {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("handshake: set deadline: %w", err)
	}
	defer conn.SetDeadline(time.Time{})

	machine := NewClient()

	hello, err := machine.Hello()
	if err != nil {
		return err
	}
	if err := wire.WriteFrame(conn, hello); err != nil {
		machine.Reject()
		return fmt.Errorf("handshake: write hello: %w", err)
	}
	if err := machine.HelloDelivered(); err != nil {
		return err
	}

	payload, err := wire.ReadFrame(conn, max)
	if err != nil {
		machine.Reject()
		return fmt.Errorf("handshake: read challenge: %w", err)
	}
	challenge, err := machine.OnChallenge(payload)
	if err != nil {
		return err
	}

	if err := envelope.SendSealed(conn, dek, username, challenge); err != nil {
		machine.Reject()
		return fmt.Errorf("handshake: write response: %w", err)
	}
	return machine.ResponseDelivered()
}
