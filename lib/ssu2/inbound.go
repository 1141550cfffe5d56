package ssu2

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// inboundState tracks where the responder-side handshake is.
type inboundState int

const (
	// inboundStateAwaitingInitiation: no initiation has been accepted yet.
	inboundStateAwaitingInitiation inboundState = iota

	// inboundStateRetryChallengeSent: a Retry was sent and the session waits
	// for a fresh initiation carrying its token.
	inboundStateRetryChallengeSent

	// inboundStateAwaitingConfirmation: SessionCreated was sent and the
	// session waits for SessionConfirmed.
	inboundStateAwaitingConfirmation
)

// InboundConfig configures a pending inbound session.
type InboundConfig struct {
	// DstID is the destination connection ID the socket layer keyed this
	// session under.
	DstID uint64

	// RemoteAddr is the sender of the initiating datagram.
	RemoteAddr net.Addr

	// Handshake performs the responder-side cryptographic steps.
	Handshake InboundHandshake

	// Sender transmits outgoing packet bytes.
	Sender PacketSender

	// Schedules overrides the retransmission timing; the zero value selects
	// DefaultSchedules.
	Schedules ScheduleTable

	// RequireToken makes the responder challenge every SessionRequest that
	// arrives before a Retry round-trip, the anti-spoofing policy.
	RequireToken bool
}

// InboundSession drives a pending session where the local router is the
// responder. It is created by the socket layer when a datagram arrives for
// an unknown destination connection ID, consumes datagrams via
// DeliverPacket, and produces exactly one PendingSessionStatus on Outcome.
type InboundSession struct {
	dstID        uint64
	remoteAddr   net.Addr
	handshake    InboundHandshake
	sender       PacketSender
	schedules    ScheduleTable
	requireToken bool

	// Owned by the run goroutine.
	state         inboundState
	retransmitter *PacketRetransmitter

	started time.Time
	inbox   chan []byte
	outcome chan PendingSessionStatus

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// StartInboundSession creates the session and starts its driver goroutine.
// Until an initiation is accepted the session is bounded by the retry
// timeout, so a half-open attempt cannot be kept alive indefinitely.
func StartInboundSession(ctx context.Context, cfg InboundConfig) (*InboundSession, error) {
	if cfg.Handshake == nil {
		return nil, ErrNilHandshake
	}
	if cfg.Sender == nil {
		return nil, ErrNilSender
	}

	schedules := cfg.Schedules
	if schedules.isZero() {
		schedules = DefaultSchedules()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	s := &InboundSession{
		dstID:         cfg.DstID,
		remoteAddr:    cfg.RemoteAddr,
		handshake:     cfg.Handshake,
		sender:        cfg.Sender,
		schedules:     schedules,
		requireToken:  cfg.RequireToken,
		state:         inboundStateAwaitingInitiation,
		retransmitter: NewInactiveRetransmitter(now, schedules.RetryTimeout),
		started:       now,
		inbox:         make(chan []byte, 8),
		outcome:       make(chan PendingSessionStatus, 1),
		ctx:           sessionCtx,
		cancel:        cancel,
	}

	go s.run()
	return s, nil
}

// DstID returns the destination connection ID this session is keyed under.
func (s *InboundSession) DstID() uint64 {
	return s.dstID
}

// DeliverPacket hands an inbound datagram to the session. The bytes are
// copied; the caller may reuse its buffer. It returns ErrSessionClosed once
// the session has resolved; packets beyond the inbox capacity are dropped.
func (s *InboundSession) DeliverPacket(pkt []byte) error {
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}

	buf := make([]byte, len(pkt))
	copy(buf, pkt)

	select {
	case s.inbox <- buf:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
		log.WithFields(logger.Fields{
			"dst_id": s.dstID,
		}).Warn("inbound session inbox full, dropping packet")
		return nil
	}
}

// Outcome returns the channel carrying the session's single terminal status.
func (s *InboundSession) Outcome() <-chan PendingSessionStatus {
	return s.outcome
}

// Close force-terminates the session because the owning socket closed. The
// session resolves to SocketClosed and no further I/O is attempted.
func (s *InboundSession) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *InboundSession) run() {
	timer := time.NewTimer(time.Until(s.retransmitter.Deadline()))
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.outcome <- &SocketClosed{Started: s.started}
			return

		case pkt := <-s.inbox:
			if status := s.handleMessage(pkt); status != nil {
				s.cancel()
				s.outcome <- status
				return
			}
			resetTimer(timer, s.retransmitter.Deadline())

		case now := <-timer.C:
			event, pkt := s.retransmitter.Tick(now)
			switch event {
			case RetransmitterEventRetransmit:
				if err := s.sender.SendPacket(pkt, s.remoteAddr); err != nil {
					log.WithError(err).WithFields(logger.Fields{
						"dst_id": s.dstID,
					}).Warn("failed to retransmit handshake packet")
				}
			case RetransmitterEventTimeout:
				s.cancel()
				s.outcome <- &Timeout{
					ConnectionID: s.dstID,
					RouterID:     s.handshake.RemoteRouterID(),
					Started:      s.started,
				}
				return
			}
			resetTimer(timer, s.retransmitter.Deadline())
		}
	}
}

// handleMessage advances the state machine with one datagram. It returns a
// terminal status, or nil when the session stays pending. Messages belonging
// to states already passed are duplicates from UDP reordering and are
// ignored.
func (s *InboundSession) handleMessage(pkt []byte) PendingSessionStatus {
	msgType, err := s.handshake.MessageType(pkt)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"dst_id": s.dstID,
		}).Warn("undecryptable packet for pending inbound session")
		return s.terminated()
	}

	switch s.state {
	case inboundStateAwaitingInitiation:
		switch msgType {
		case MessageTypeTokenRequest:
			return s.sendRetryChallenge(pkt)
		case MessageTypeSessionRequest:
			if s.requireToken {
				return s.sendRetryChallenge(pkt)
			}
			return s.acceptInitiation(pkt)
		}

	case inboundStateRetryChallengeSent:
		if msgType == MessageTypeSessionRequest {
			return s.acceptInitiation(pkt)
		}

	case inboundStateAwaitingConfirmation:
		if msgType == MessageTypeSessionConfirmed {
			return s.acceptConfirmation(pkt)
		}
	}

	log.WithFields(logger.Fields{
		"dst_id":       s.dstID,
		"message_type": msgType.String(),
		"state":        s.state,
	}).Debug("ignoring out-of-state message for pending inbound session")
	return nil
}

// sendRetryChallenge answers an initiation that cannot be accepted yet with
// a Retry and bounds the wait for a fresh initiation.
func (s *InboundSession) sendRetryChallenge(pkt []byte) PendingSessionStatus {
	retry, err := s.handshake.HandleRetryRequest(pkt)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"dst_id": s.dstID,
		}).Warn("invalid initiation for pending inbound session")
		return s.terminated()
	}

	if err := s.sender.SendPacket(retry, s.remoteAddr); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"dst_id": s.dstID,
		}).Warn("failed to send retry challenge")
	}

	s.retransmitter = NewInactiveRetransmitter(time.Now(), s.schedules.RetryTimeout)
	s.state = inboundStateRetryChallengeSent

	log.WithFields(logger.Fields{
		"dst_id": s.dstID,
	}).Debug("sent retry challenge")
	return nil
}

// acceptInitiation validates the SessionRequest and answers with
// SessionCreated, which is retransmitted on its own schedule until the
// confirmation arrives.
func (s *InboundSession) acceptInitiation(pkt []byte) PendingSessionStatus {
	created, err := s.handshake.HandleSessionRequest(pkt)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"dst_id": s.dstID,
		}).Warn("invalid session request for pending inbound session")
		return s.terminated()
	}

	if err := s.sender.SendPacket(created, s.remoteAddr); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"dst_id": s.dstID,
		}).Warn("failed to send session created")
	}

	s.retransmitter = NewPacketRetransmitter(time.Now(), created, s.schedules.SessionCreated)
	s.state = inboundStateAwaitingConfirmation

	log.WithFields(logger.Fields{
		"dst_id": s.dstID,
	}).Debug("sent session created, awaiting confirmation")
	return nil
}

// acceptConfirmation verifies SessionConfirmed and resolves the session. The
// ACK packet is carried in the outcome for the socket layer to transmit.
func (s *InboundSession) acceptConfirmation(pkt []byte) PendingSessionStatus {
	context, ack, err := s.handshake.HandleSessionConfirmed(pkt)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"dst_id": s.dstID,
		}).Warn("invalid session confirmed for pending inbound session")
		return s.terminated()
	}

	log.WithFields(logger.Fields{
		"dst_id":    s.dstID,
		"router_id": s.handshake.RemoteRouterID().String(),
	}).Debug("inbound session established")

	return &NewInboundSession{
		Context: context,
		DstID:   s.dstID,
		Pkt:     ack,
		Target:  s.remoteAddr,
		Started: s.started,
	}
}

func (s *InboundSession) terminated() PendingSessionStatus {
	return &SessionTerminated{
		ConnectionID: s.dstID,
		RouterID:     s.handshake.RemoteRouterID(),
		Started:      s.started,
	}
}

// resetTimer re-arms a shared loop timer for the next deadline. The caller
// must have either consumed the previous firing or not be selecting on the
// timer concurrently.
func resetTimer(t *time.Timer, deadline time.Time) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(time.Until(deadline))
}
