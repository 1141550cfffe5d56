package ssu2

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-ssu2/lib/common/identity"
)

// outboundState tracks where the initiator-side handshake is.
type outboundState int

const (
	// outboundStateAwaitingRetry: TokenRequest was sent and the session
	// waits for the Retry carrying a token.
	outboundStateAwaitingRetry outboundState = iota

	// outboundStateAwaitingResponse: SessionRequest was sent and the session
	// waits for SessionCreated.
	outboundStateAwaitingResponse

	// outboundStateAwaitingFirstData: SessionConfirmed was sent and the
	// session waits for the first Data packet as the implicit ACK.
	outboundStateAwaitingFirstData
)

// OutboundConfig configures a pending outbound session.
type OutboundConfig struct {
	// SrcID is the source connection ID the socket layer keyed this session
	// under.
	SrcID uint64

	// RemoteAddr is the socket address of the remote router.
	RemoteAddr net.Addr

	// RouterID identifies the remote router being dialed.
	RouterID identity.RouterID

	// Handshake performs the initiator-side cryptographic steps.
	Handshake OutboundHandshake

	// Sender transmits outgoing packet bytes.
	Sender PacketSender

	// Schedules overrides the retransmission timing; the zero value selects
	// DefaultSchedules.
	Schedules ScheduleTable

	// HasToken skips the TokenRequest round-trip and opens directly with
	// SessionRequest, used when a previously issued token is cached.
	HasToken bool
}

// OutboundSession drives a pending session where the local router is the
// initiator. Construction immediately sends the opening message and arms its
// retransmission schedule. The session is not reported as established until
// the responder's first Data packet proves it received SessionConfirmed.
type OutboundSession struct {
	srcID      uint64
	remoteAddr net.Addr
	routerID   identity.RouterID
	handshake  OutboundHandshake
	sender     PacketSender
	schedules  ScheduleTable

	// Owned by the run goroutine.
	state         outboundState
	retransmitter *PacketRetransmitter

	started time.Time
	inbox   chan []byte
	outcome chan PendingSessionStatus

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// StartOutboundSession creates the session, sends the opening TokenRequest
// or SessionRequest, and starts the driver goroutine. Construction fails
// only if the opening message cannot be built; a failed transmission is left
// to the retransmission schedule.
func StartOutboundSession(ctx context.Context, cfg OutboundConfig) (*OutboundSession, error) {
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

	s := &OutboundSession{
		srcID:      cfg.SrcID,
		remoteAddr: cfg.RemoteAddr,
		routerID:   cfg.RouterID,
		handshake:  cfg.Handshake,
		sender:     cfg.Sender,
		schedules:  schedules,
		started:    now,
		inbox:      make(chan []byte, 8),
		outcome:    make(chan PendingSessionStatus, 1),
		ctx:        sessionCtx,
		cancel:     cancel,
	}

	var (
		opening []byte
		err     error
	)
	if cfg.HasToken {
		opening, err = s.handshake.BuildSessionRequest()
	} else {
		opening, err = s.handshake.BuildTokenRequest()
	}
	if err != nil {
		cancel()
		return nil, err
	}

	if cfg.HasToken {
		s.state = outboundStateAwaitingResponse
		s.retransmitter = NewPacketRetransmitter(now, opening, schedules.SessionRequest)
	} else {
		s.state = outboundStateAwaitingRetry
		s.retransmitter = NewPacketRetransmitter(now, opening, schedules.TokenRequest)
	}

	if sendErr := s.sender.SendPacket(opening, s.remoteAddr); sendErr != nil {
		log.WithError(sendErr).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("failed to send handshake opening")
	}

	go s.run()
	return s, nil
}

// SrcID returns the source connection ID this session is keyed under.
func (s *OutboundSession) SrcID() uint64 {
	return s.srcID
}

// DeliverPacket hands an inbound datagram to the session. The bytes are
// copied; the caller may reuse its buffer. It returns ErrSessionClosed once
// the session has resolved; packets beyond the inbox capacity are dropped.
func (s *OutboundSession) DeliverPacket(pkt []byte) error {
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
			"src_id": s.srcID,
		}).Warn("outbound session inbox full, dropping packet")
		return nil
	}
}

// Outcome returns the channel carrying the session's single terminal status.
func (s *OutboundSession) Outcome() <-chan PendingSessionStatus {
	return s.outcome
}

// Close force-terminates the session because the owning socket closed. The
// session resolves to SocketClosed and no further I/O is attempted.
func (s *OutboundSession) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *OutboundSession) run() {
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
						"src_id": s.srcID,
					}).Warn("failed to retransmit handshake packet")
				}
			case RetransmitterEventTimeout:
				s.cancel()
				s.outcome <- &Timeout{
					ConnectionID: s.srcID,
					RouterID:     s.routerID,
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
// ignored; in particular a duplicate Retry after the SessionRequest has gone
// out must not restart the token exchange.
func (s *OutboundSession) handleMessage(pkt []byte) PendingSessionStatus {
	msgType, err := s.handshake.MessageType(pkt)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("undecryptable packet for pending outbound session")
		return s.terminated()
	}

	switch s.state {
	case outboundStateAwaitingRetry:
		if msgType == MessageTypeRetry {
			return s.handleRetry(pkt)
		}

	case outboundStateAwaitingResponse:
		if msgType == MessageTypeSessionCreated {
			return s.handleResponse(pkt)
		}

	case outboundStateAwaitingFirstData:
		if msgType == MessageTypeData {
			return s.handleFirstData(pkt)
		}
	}

	log.WithFields(logger.Fields{
		"src_id":       s.srcID,
		"message_type": msgType.String(),
		"state":        s.state,
	}).Debug("ignoring out-of-state message for pending outbound session")
	return nil
}

// handleRetry consumes the Retry token and advances to SessionRequest.
func (s *OutboundSession) handleRetry(pkt []byte) PendingSessionStatus {
	if err := s.handshake.HandleRetry(pkt); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("invalid retry for pending outbound session")
		return s.terminated()
	}

	request, err := s.handshake.BuildSessionRequest()
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("failed to build session request")
		return s.terminated()
	}

	if err := s.sender.SendPacket(request, s.remoteAddr); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("failed to send session request")
	}

	s.retransmitter = NewPacketRetransmitter(time.Now(), request, s.schedules.SessionRequest)
	s.state = outboundStateAwaitingResponse

	log.WithFields(logger.Fields{
		"src_id": s.srcID,
	}).Debug("sent session request, awaiting response")
	return nil
}

// handleResponse validates SessionCreated and sends SessionConfirmed. The
// session stays pending until the responder's first Data packet.
func (s *OutboundSession) handleResponse(pkt []byte) PendingSessionStatus {
	if err := s.handshake.HandleSessionCreated(pkt); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("invalid session created for pending outbound session")
		return s.terminated()
	}

	confirmed, err := s.handshake.BuildSessionConfirmed()
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("failed to build session confirmed")
		return s.terminated()
	}

	if err := s.sender.SendPacket(confirmed, s.remoteAddr); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("failed to send session confirmed")
	}

	s.retransmitter = NewPacketRetransmitter(time.Now(), confirmed, s.schedules.SessionConfirmed)
	s.state = outboundStateAwaitingFirstData

	log.WithFields(logger.Fields{
		"src_id": s.srcID,
	}).Debug("sent session confirmed, awaiting first data packet")
	return nil
}

// handleFirstData treats the first Data packet as proof the peer received
// SessionConfirmed and resolves the session.
func (s *OutboundSession) handleFirstData(pkt []byte) PendingSessionStatus {
	context, err := s.handshake.HandleFirstData(pkt)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"src_id": s.srcID,
		}).Warn("invalid first data packet for pending outbound session")
		return s.terminated()
	}

	log.WithFields(logger.Fields{
		"src_id":    s.srcID,
		"router_id": s.routerID.String(),
	}).Debug("outbound session established")

	return &NewOutboundSession{
		Context: context,
		SrcID:   s.srcID,
		Started: s.started,
	}
}

func (s *OutboundSession) terminated() PendingSessionStatus {
	return &SessionTerminated{
		ConnectionID: s.srcID,
		RouterID:     s.routerID,
		Started:      s.started,
	}
}
