package ssu2

import "time"

// RetransmissionSchedule describes the retry cadence of one in-flight
// handshake message: InitialDelay is the wait before the first retransmit,
// each element of Delays is the wait before the next one. When Delays is
// exhausted the message times out.
type RetransmissionSchedule struct {
	InitialDelay time.Duration
	Delays       []time.Duration
}

// ScheduleTable maps each handshake message type to its retransmission
// schedule. The delays are fixed by the SSU2 specification but are kept as a
// table so deployments can tune them (see lib/config) without touching the
// state machines.
type ScheduleTable struct {
	// RetryTimeout bounds how long an inbound session is kept alive after a
	// Retry challenge has been sent and before a fresh initiation has been
	// accepted. No retransmits occur during this window.
	RetryTimeout time.Duration

	TokenRequest     RetransmissionSchedule
	SessionRequest   RetransmissionSchedule
	SessionCreated   RetransmissionSchedule
	SessionConfirmed RetransmissionSchedule
}

// DefaultSchedules returns the spec-mandated retransmission timing.
//
//   - TokenRequest: first retransmit after 3s, then 6s and 6s.
//     https://geti2p.net/spec/ssu2#token-request
//   - SessionRequest: 1.25s, then 2.5s, 5s, 6.25s.
//     https://geti2p.net/spec/ssu2#session-request
//   - SessionCreated: 1s, then 2s, 4s, 5s.
//     https://geti2p.net/spec/ssu2#session-created
//   - SessionConfirmed: 1.25s, then 2.5s, 5s, 6.25s. The response to a
//     SessionConfirmed is the peer's first Data packet.
//     https://geti2p.net/spec/ssu2#session-confirmed
func DefaultSchedules() ScheduleTable {
	return ScheduleTable{
		RetryTimeout: 15 * time.Second,
		TokenRequest: RetransmissionSchedule{
			InitialDelay: 3 * time.Second,
			Delays:       []time.Duration{6 * time.Second, 6 * time.Second},
		},
		SessionRequest: RetransmissionSchedule{
			InitialDelay: 1250 * time.Millisecond,
			Delays: []time.Duration{
				2500 * time.Millisecond,
				5000 * time.Millisecond,
				6250 * time.Millisecond,
			},
		},
		SessionCreated: RetransmissionSchedule{
			InitialDelay: 1 * time.Second,
			Delays: []time.Duration{
				2 * time.Second,
				4 * time.Second,
				5 * time.Second,
			},
		},
		SessionConfirmed: RetransmissionSchedule{
			InitialDelay: 1250 * time.Millisecond,
			Delays: []time.Duration{
				2500 * time.Millisecond,
				5000 * time.Millisecond,
				6250 * time.Millisecond,
			},
		},
	}
}

// isZero reports whether the table has not been populated at all, so callers
// can fall back to DefaultSchedules.
func (t ScheduleTable) isZero() bool {
	return t.RetryTimeout == 0 &&
		t.TokenRequest.InitialDelay == 0 && t.TokenRequest.Delays == nil &&
		t.SessionRequest.InitialDelay == 0 && t.SessionRequest.Delays == nil &&
		t.SessionCreated.InitialDelay == 0 && t.SessionCreated.Delays == nil &&
		t.SessionConfirmed.InitialDelay == 0 && t.SessionConfirmed.Delays == nil
}
