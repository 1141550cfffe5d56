package ssu2

import (
	"net"
	"time"

	"github.com/go-i2p/go-ssu2/lib/common/identity"
)

// PendingSessionStatus is the terminal outcome of one pending session.
// Exactly one status is produced per session; after that the session object
// is retired and its retransmitters are cancelled. The set of variants is
// closed: NewInboundSession, NewOutboundSession, SessionTerminated, Timeout
// and SocketClosed.
type PendingSessionStatus interface {
	// Duration returns the elapsed time since the handshake attempt started,
	// clamped to be non-negative. Used for observability (reported in
	// milliseconds by callers).
	Duration() time.Duration

	pendingSessionStatus()
}

// elapsed computes a non-negative handshake duration.
func elapsed(started time.Time) time.Duration {
	if d := time.Since(started); d > 0 {
		return d
	}
	return 0
}

// NewInboundSession reports a successfully established inbound session.
type NewInboundSession struct {
	// Context for the active session.
	Context *SessionContext

	// DstID is the destination connection ID the session was keyed under.
	DstID uint64

	// Pkt is the encrypted Data packet acknowledging SessionConfirmed, to be
	// transmitted by the socket layer.
	Pkt []byte

	// Target is the socket address of the remote router.
	Target net.Addr

	// Started is when the handshake attempt began.
	Started time.Time
}

func (s *NewInboundSession) Duration() time.Duration { return elapsed(s.Started) }
func (s *NewInboundSession) pendingSessionStatus()   {}

// NewOutboundSession reports a successfully established outbound session.
type NewOutboundSession struct {
	// Context for the active session.
	Context *SessionContext

	// SrcID is the source connection ID the session was keyed under.
	SrcID uint64

	// Started is when the handshake attempt began.
	Started time.Time
}

func (s *NewOutboundSession) Duration() time.Duration { return elapsed(s.Started) }
func (s *NewOutboundSession) pendingSessionStatus()   {}

// SessionTerminated reports a pending session destroyed by a fatal protocol
// or cryptographic error.
type SessionTerminated struct {
	// ConnectionID is the destination or source connection ID, depending on
	// session direction.
	ConnectionID uint64

	// RouterID identifies the remote router when already known; the zero
	// value otherwise (always zero for inbound sessions).
	RouterID identity.RouterID

	// Started is when the handshake attempt began.
	Started time.Time
}

func (s *SessionTerminated) Duration() time.Duration { return elapsed(s.Started) }
func (s *SessionTerminated) pendingSessionStatus()   {}

// Timeout reports a pending session whose retransmission schedule was
// exhausted without a reply. Unlike SessionTerminated it does not imply an
// invalid peer; the datagrams may simply have been lost.
type Timeout struct {
	// ConnectionID is the destination or source connection ID, depending on
	// session direction.
	ConnectionID uint64

	// RouterID identifies the remote router when already known; the zero
	// value otherwise.
	RouterID identity.RouterID

	// Started is when the handshake attempt began.
	Started time.Time
}

func (s *Timeout) Duration() time.Duration { return elapsed(s.Started) }
func (s *Timeout) pendingSessionStatus()   {}

// SocketClosed reports a pending session cancelled because the owning socket
// was shut down. Always recoverable by restarting the listening path.
type SocketClosed struct {
	// Started is when the handshake attempt began.
	Started time.Time
}

func (s *SocketClosed) Duration() time.Duration { return elapsed(s.Started) }
func (s *SocketClosed) pendingSessionStatus()   {}
