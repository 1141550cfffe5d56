package ssu2

import (
	"sync"

	"github.com/go-i2p/logger"
	"golang.org/x/time/rate"
)

// PendingSession is the view the socket layer has of one in-progress
// handshake, satisfied by both InboundSession and OutboundSession.
type PendingSession interface {
	DeliverPacket(pkt []byte) error
	Outcome() <-chan PendingSessionStatus
	Close()
}

// direction separates the registry's two key spaces: connection IDs are not
// globally unique, so an inbound session's destination connection ID may
// legitimately collide with an outbound session's source connection ID.
type direction int

const (
	directionInbound direction = iota
	directionOutbound
)

func (d direction) String() string {
	if d == directionInbound {
		return "inbound"
	}
	return "outbound"
}

type registryKey struct {
	dir    direction
	connID uint64
}

// SessionRegistry is the connection-id-keyed dispatch table for pending
// sessions: insertion on handshake start, eviction when the session's
// outcome is produced. Inbound sessions are keyed by destination connection
// ID, outbound sessions by source connection ID, in separate key spaces.
//
// All mutation happens under a single lock, and resolved outcomes are
// forwarded on Outcomes for the socket layer to consume. New inbound
// attempts pass through a token bucket so a spoofed packet flood cannot
// pile up half-open sessions.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[registryKey]PendingSession
	closed   bool

	limiter  *rate.Limiter
	outcomes chan PendingSessionStatus
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewSessionRegistry creates a registry admitting at most inboundRate new
// inbound handshakes per second with the given burst. A zero inboundRate
// disables the limit.
func NewSessionRegistry(inboundRate rate.Limit, inboundBurst int) *SessionRegistry {
	var limiter *rate.Limiter
	if inboundRate > 0 {
		limiter = rate.NewLimiter(inboundRate, inboundBurst)
	}

	return &SessionRegistry{
		sessions: make(map[registryKey]PendingSession),
		limiter:  limiter,
		outcomes: make(chan PendingSessionStatus, 16),
		done:     make(chan struct{}),
	}
}

// AddInbound registers a pending inbound session under its destination
// connection ID, subject to the inbound rate limit. On failure the session
// is closed and the caller must not use it further.
func (r *SessionRegistry) AddInbound(session *InboundSession) error {
	if r.limiter != nil && !r.limiter.Allow() {
		session.Close()
		log.WithFields(logger.Fields{
			"dst_id": session.DstID(),
		}).Warn("rejecting inbound handshake, rate limit exceeded")
		return ErrInboundRateLimit
	}
	return r.add(registryKey{directionInbound, session.DstID()}, session)
}

// AddOutbound registers a pending outbound session under its source
// connection ID. On failure the session is closed and the caller must not
// use it further.
func (r *SessionRegistry) AddOutbound(session *OutboundSession) error {
	return r.add(registryKey{directionOutbound, session.SrcID()}, session)
}

func (r *SessionRegistry) add(key registryKey, session PendingSession) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		session.Close()
		return ErrRegistryClosed
	}
	if _, ok := r.sessions[key]; ok {
		r.mu.Unlock()
		session.Close()
		return ErrConnectionIDInUse
	}
	r.sessions[key] = session
	r.wg.Add(1)
	r.mu.Unlock()

	go r.watch(key, session)
	return nil
}

// watch waits for the session's single outcome, evicts the registry entry
// and forwards the outcome to the socket layer.
func (r *SessionRegistry) watch(key registryKey, session PendingSession) {
	defer r.wg.Done()

	status := <-session.Outcome()

	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()

	select {
	case r.outcomes <- status:
	case <-r.done:
	}
}

// DispatchInbound routes an inbound datagram to the pending inbound session
// keyed under the destination connection ID. It reports whether a session
// was found; the caller decides what an unmatched datagram means (new
// inbound attempt, active session, or junk).
func (r *SessionRegistry) DispatchInbound(dstID uint64, pkt []byte) bool {
	return r.dispatch(registryKey{directionInbound, dstID}, pkt)
}

// DispatchOutbound routes a response datagram to the pending outbound
// session keyed under the source connection ID. It reports whether a session
// was found.
func (r *SessionRegistry) DispatchOutbound(srcID uint64, pkt []byte) bool {
	return r.dispatch(registryKey{directionOutbound, srcID}, pkt)
}

func (r *SessionRegistry) dispatch(key registryKey, pkt []byte) bool {
	r.mu.Lock()
	session, ok := r.sessions[key]
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := session.DeliverPacket(pkt); err != nil {
		// The session resolved between lookup and delivery; its watcher
		// evicts the entry.
		log.WithError(err).WithFields(logger.Fields{
			"conn_id":   key.connID,
			"direction": key.dir.String(),
		}).Debug("dropping packet for resolved pending session")
	}
	return true
}

// Outcomes carries every resolved PendingSessionStatus. The channel is
// closed when the registry shuts down.
func (r *SessionRegistry) Outcomes() <-chan PendingSessionStatus {
	return r.outcomes
}

// Len returns the number of pending sessions across both directions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close force-terminates every pending session (each resolves to
// SocketClosed), waits for the watchers to drain and closes Outcomes.
// Outcomes not yet consumed by the socket layer may be dropped.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	pending := make([]PendingSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		pending = append(pending, session)
	}
	r.mu.Unlock()

	for _, session := range pending {
		session.Close()
	}

	close(r.done)
	r.wg.Wait()
	close(r.outcomes)
}
