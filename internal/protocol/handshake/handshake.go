// Package handshake implements the challenge-response protocol run once per
// connection, before any chat traffic is accepted. It proves the peer holds
// the shared DEK without ever transmitting the key: the server issues a fresh
// random challenge and admits only a peer that can return it sealed under the
// same key. The state machines are pure; Accept and Initiate drive them over
// a connection.
package handshake

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Greeting is the plaintext frame that opens every connection. An exact
	// match doubles as a cheap protocol compatibility check.
	Greeting = "HELLO-LOCKCHAT"

	// challengePrefix tags the server's challenge frame.
	challengePrefix = "CHAL:"

	// ChallengeSize is the number of random challenge bytes (hex-encoded on
	// the wire).
	ChallengeSize = 12
)

var (
	// ErrBadGreeting marks a first frame that is not the expected greeting.
	ErrBadGreeting = errors.New("handshake: unexpected greeting")

	// ErrBadChallenge marks a challenge frame the client cannot parse.
	ErrBadChallenge = errors.New("handshake: malformed challenge")

	// ErrChallengeMismatch marks a response that decrypted cleanly but does
	// not match the issued challenge (e.g. a replayed transcript).
	ErrChallengeMismatch = errors.New("handshake: challenge response mismatch")
)

// State is one node of either role's handshake machine. Authenticated and
// Rejected are shared terminal states.
type State int

const (
	// server side
	StateAwaitingHello State = iota
	StateChallengeSent
	StateAwaitingResponse
	// client side
	StateConnected
	StateHelloSent
	StateAwaitingChallenge
	StateResponseSent
	// terminal
	StateAuthenticated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateAwaitingHello:
		return "AwaitingHello"
	case StateChallengeSent:
		return "ChallengeSent"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateConnected:
		return "Connected"
	case StateHelloSent:
		return "HelloSent"
	case StateAwaitingChallenge:
		return "AwaitingChallenge"
	case StateResponseSent:
		return "ResponseSent"
	case StateAuthenticated:
		return "Authenticated"
	case StateRejected:
		return "Rejected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the machine can make no further transition.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateRejected
}

type (
	// Server is the responder state machine for one connection attempt. The
	// challenge lives only until the handshake resolves.
	Server struct {
		state     State
		challenge string
	}

	// Client is the initiator state machine.
	Client struct {
		state State
	}
)

// NewServer returns a responder machine in StateAwaitingHello.
func NewServer() *Server {
	return &Server{state: StateAwaitingHello}
}

func (s *Server) State() State { return s.state }

// OnHello consumes the peer's first frame. On an exact greeting match it
// generates a fresh challenge and returns the challenge frame payload to send.
func (s *Server) OnHello(payload []byte) ([]byte, error) {
	if s.state != StateAwaitingHello {
		return nil, fmt.Errorf("handshake: hello received in state %v", s.state)
	}
	if !bytes.Equal(payload, []byte(Greeting)) {
		s.state = StateRejected
		return nil, ErrBadGreeting
	}

	raw := make([]byte, ChallengeSize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		s.state = StateRejected
		return nil, fmt.Errorf("handshake: generate challenge: %w", err)
	}
	s.challenge = hex.EncodeToString(raw)
	s.state = StateChallengeSent
	return []byte(challengePrefix + s.challenge), nil
}

// ChallengeDelivered records that the challenge frame reached the transport.
func (s *Server) ChallengeDelivered() error {
	if s.state != StateChallengeSent {
		return fmt.Errorf("handshake: challenge delivered in state %v", s.state)
	}
	s.state = StateAwaitingResponse
	return nil
}

// OnResponse consumes the decrypted challenge response. reply must byte-equal
// the issued challenge; anything else rejects the connection.
func (s *Server) OnResponse(reply string) error {
	if s.state != StateAwaitingResponse {
		return fmt.Errorf("handshake: response received in state %v", s.state)
	}
	if reply != s.challenge {
		s.state = StateRejected
		return ErrChallengeMismatch
	}
	s.challenge = ""
	s.state = StateAuthenticated
	return nil
}

// Reject forces the terminal rejected state (decode or transport failure).
func (s *Server) Reject() {
	s.challenge = ""
	s.state = StateRejected
}

// NewClient returns an initiator machine in StateConnected.
func NewClient() *Client {
	return &Client{state: StateConnected}
}

func (c *Client) State() State { return c.state }

// Hello returns the greeting frame payload.
func (c *Client) Hello() ([]byte, error) {
	if c.state != StateConnected {
		return nil, fmt.Errorf("handshake: hello in state %v", c.state)
	}
	c.state = StateHelloSent
	return []byte(Greeting), nil
}

// HelloDelivered records that the greeting reached the transport.
func (c *Client) HelloDelivered() error {
	if c.state != StateHelloSent {
		return fmt.Errorf("handshake: hello delivered in state %v", c.state)
	}
	c.state = StateAwaitingChallenge
	return nil
}

// OnChallenge parses the server's challenge frame and returns the challenge
// text the caller must seal and send back.
func (c *Client) OnChallenge(payload []byte) (string, error) {
	if c.state != StateAwaitingChallenge {
		return "", fmt.Errorf("handshake: challenge received in state %v", c.state)
	}

	text := string(payload)
	if !strings.HasPrefix(text, challengePrefix) {
		c.state = StateRejected
		return "", ErrBadChallenge
	}
	challenge := strings.TrimPrefix(text, challengePrefix)
	if raw, err := hex.DecodeString(challenge); err != nil || len(raw) != ChallengeSize {
		c.state = StateRejected
		return "", ErrBadChallenge
	}
	c.state = StateResponseSent
	return challenge, nil
}

// ResponseDelivered marks the optimistic terminal state. The protocol has no
// acknowledgement frame: a rejection surfaces as the server closing the
// connection.
func (c *Client) ResponseDelivered() error {
	if c.state != StateResponseSent {
		return fmt.Errorf("handshake: response delivered in state %v", c.state)
	}
	c.state = StateAuthenticated
	return nil
}

// Reject forces the terminal rejected state.
func (c *Client) Reject() {
	c.state = StateRejected
}
