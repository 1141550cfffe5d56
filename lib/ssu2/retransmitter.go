package ssu2

import "time"

// RetransmitterEvent is the result of polling a PacketRetransmitter.
type RetransmitterEvent int

const (
	// RetransmitterEventNone means the deadline has not been reached.
	RetransmitterEventNone RetransmitterEvent = iota

	// RetransmitterEventRetransmit instructs the owner to resend the stored
	// packet. The retransmitter stays alive and must be polled again.
	RetransmitterEventRetransmit

	// RetransmitterEventTimeout means the schedule is exhausted. The
	// retransmitter is terminal and must be discarded.
	RetransmitterEventTimeout
)

// PacketRetransmitter owns one in-flight handshake packet and its
// retransmission schedule. It is a passive state object: the owning session
// arms a timer for Deadline() and calls Tick when it fires. Discarding the
// retransmitter cancels all pending retransmits.
//
// A retransmitter is not safe for concurrent use; each one is owned by a
// single pending session.
type PacketRetransmitter struct {
	pkt      []byte
	delays   []time.Duration
	deadline time.Time
	done     bool
}

// NewPacketRetransmitter creates a retransmitter for pkt with the given
// schedule, armed relative to now.
func NewPacketRetransmitter(now time.Time, pkt []byte, schedule RetransmissionSchedule) *PacketRetransmitter {
	delays := make([]time.Duration, len(schedule.Delays))
	copy(delays, schedule.Delays)

	return &PacketRetransmitter{
		pkt:      pkt,
		delays:   delays,
		deadline: now.Add(schedule.InitialDelay),
	}
}

// NewInactiveRetransmitter creates a retransmitter that never retransmits
// and times out after timeout. Used by a pending inbound session when a
// Retry challenge has been sent and no fresh initiation has been accepted
// yet: it bounds how long the half-open attempt is kept alive.
func NewInactiveRetransmitter(now time.Time, timeout time.Duration) *PacketRetransmitter {
	return &PacketRetransmitter{
		deadline: now.Add(timeout),
	}
}

// Deadline returns the instant of the next firing. Meaningless once the
// retransmitter has yielded a timeout.
func (r *PacketRetransmitter) Deadline() time.Time {
	return r.deadline
}

// Done reports whether the retransmitter has yielded its timeout event.
func (r *PacketRetransmitter) Done() bool {
	return r.done
}

// Tick advances the retransmitter. Before the deadline, and after the
// timeout event has been yielded, it reports RetransmitterEventNone. At the
// deadline it either pops the next delay and emits a retransmit carrying a
// copy of the stored packet, or emits the terminal timeout.
func (r *PacketRetransmitter) Tick(now time.Time) (RetransmitterEvent, []byte) {
	if r.done || now.Before(r.deadline) {
		return RetransmitterEventNone, nil
	}

	if len(r.delays) > 0 {
		next := r.delays[0]
		r.delays = r.delays[1:]
		r.deadline = now.Add(next)

		pkt := make([]byte, len(r.pkt))
		copy(pkt, r.pkt)
		return RetransmitterEventRetransmit, pkt
	}

	r.done = true
	return RetransmitterEventTimeout, nil
}
