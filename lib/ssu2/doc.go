// Package ssu2 implements the SSU2 pending-session establishment engine:
// the protocol state machines and retransmission scheduling that turn a raw,
// unauthenticated UDP handshake attempt into either a keyed transport session
// or a well-defined failure outcome.
//
// # Overview
//
// Two state machines drive a pending session depending on the local role:
//   - InboundSession: local router is the responder (Bob). Receives the
//     initiation, optionally challenges the sender with a Retry, and waits
//     for SessionConfirmed.
//   - OutboundSession: local router is the initiator (Alice). Sends
//     SessionRequest (or TokenRequest when no token is cached), processes
//     SessionCreated, sends SessionConfirmed and waits for the first Data
//     packet as the implicit acknowledgment.
//
// Each in-flight handshake message is owned by a PacketRetransmitter whose
// per-message-type delays follow the SSU2 specification. When a schedule is
// exhausted the session resolves to a Timeout outcome.
//
// # Separation of concerns
//
// This package performs no cryptography and no socket I/O. The AEAD/Noise
// handshake steps are delegated to the InboundHandshake/OutboundHandshake
// collaborators, and outgoing bytes are handed to a PacketSender. The
// socket layer demultiplexes datagrams to pending sessions by connection ID,
// typically through a SessionRegistry, and consumes exactly one
// PendingSessionStatus per session.
//
// # Thread safety
//
// A pending session is driven by a single goroutine; its state is never
// shared. DeliverPacket, Close and Outcome are safe to call from the socket
// layer concurrently. The SessionRegistry is safe for concurrent use.
//
// See https://geti2p.net/spec/ssu2 for the wire protocol.
package ssu2
