package ssu2

import (
	"net"

	"github.com/go-i2p/go-ssu2/lib/common/identity"
)

// SessionContext carries the negotiated key material and connection
// parameters of a completed handshake. It is produced by a handshake
// collaborator and forwarded unchanged to the active-session layer; this
// package never inspects it.
type SessionContext struct {
	// DestinationID and SourceID are the connection IDs negotiated for the
	// two directions of the session.
	DestinationID uint64
	SourceID      uint64

	// RemoteAddr is the socket address of the remote router.
	RemoteAddr net.Addr

	// RouterID identifies the authenticated remote router.
	RouterID identity.RouterID

	// RecvKeyContext and SendKeyContext hold the derived cipher state for
	// the data phase, opaque to the establishment engine.
	RecvKeyContext []byte
	SendKeyContext []byte
}

// PacketSender transmits packet bytes to a remote address. Implemented by
// the socket layer; pending sessions never perform raw I/O themselves.
type PacketSender interface {
	SendPacket(pkt []byte, to net.Addr) error
}

// InboundHandshake performs the responder-side cryptographic steps of the
// handshake: parsing and validating incoming messages against the transcript
// and building the bytes of outgoing ones. Any returned error is treated by
// the state machine as fatal for the pending session.
//
// Implementations are driven by a single session goroutine and need not be
// safe for concurrent use.
type InboundHandshake interface {
	// MessageType decrypts enough of pkt's header to classify it.
	MessageType(pkt []byte) (MessageType, error)

	// HandleRetryRequest validates an initiation that cannot be accepted yet
	// (a TokenRequest, or a SessionRequest when responder policy demands a
	// fresh token) and builds the Retry challenge to send back.
	HandleRetryRequest(pkt []byte) (retry []byte, err error)

	// HandleSessionRequest validates the initiation, including its token,
	// and builds the SessionCreated response.
	HandleSessionRequest(pkt []byte) (created []byte, err error)

	// HandleSessionConfirmed verifies the confirmation against the handshake
	// transcript. On success it returns the context for the active session
	// and the encrypted Data packet acknowledging the confirmation.
	HandleSessionConfirmed(pkt []byte) (*SessionContext, []byte, error)

	// RemoteRouterID returns the peer's identity once it is known (after the
	// confirmation has been parsed), or the zero RouterID.
	RemoteRouterID() identity.RouterID
}

// OutboundHandshake performs the initiator-side cryptographic steps of the
// handshake. Any returned error is treated as fatal for the pending session.
//
// Implementations are driven by a single session goroutine and need not be
// safe for concurrent use.
type OutboundHandshake interface {
	// MessageType decrypts enough of pkt's header to classify it.
	MessageType(pkt []byte) (MessageType, error)

	// BuildTokenRequest builds the TokenRequest sent when no token for the
	// remote router is known.
	BuildTokenRequest() ([]byte, error)

	// HandleRetry validates a Retry challenge and extracts its token for the
	// subsequent SessionRequest.
	HandleRetry(pkt []byte) error

	// BuildSessionRequest builds the SessionRequest.
	BuildSessionRequest() ([]byte, error)

	// HandleSessionCreated validates the responder's SessionCreated.
	HandleSessionCreated(pkt []byte) error

	// BuildSessionConfirmed builds the SessionConfirmed message.
	BuildSessionConfirmed() ([]byte, error)

	// HandleFirstData validates the first post-handshake Data packet, the
	// proof that the responder received the confirmation, and derives the
	// context for the active session.
	HandleFirstData(pkt []byte) (*SessionContext, error)
}
