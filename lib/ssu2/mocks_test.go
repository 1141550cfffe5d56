package ssu2

import (
	"crypto/sha256"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/go-i2p/go-ssu2/lib/common/identity"
)

// Test packets carry the message type in their first byte; the fake
// handshakes below "decrypt" headers by reading it. SessionConfirmed and
// Data packets end in a 32-byte SHA-256 tag over the payload standing in
// for the AEAD tail, so corruption tests can flip a bit and fail validation.

func testPacket(msgType MessageType, payload ...byte) []byte {
	return append([]byte{byte(msgType)}, payload...)
}

func sealedPacket(msgType MessageType, payload []byte) []byte {
	sum := sha256.Sum256(payload)
	pkt := append([]byte{byte(msgType)}, payload...)
	return append(pkt, sum[:]...)
}

func checkSealedPacket(pkt []byte) error {
	if len(pkt) < 1+sha256.Size {
		return oops.Errorf("packet too short")
	}
	payload := pkt[1 : len(pkt)-sha256.Size]
	sum := sha256.Sum256(payload)
	tail := pkt[len(pkt)-sha256.Size:]
	for i := range sum {
		if sum[i] != tail[i] {
			return oops.Errorf("authentication tag mismatch")
		}
	}
	return nil
}

func classify(pkt []byte) (MessageType, error) {
	if len(pkt) == 0 {
		return 0, oops.Errorf("empty packet")
	}
	t := MessageType(pkt[0])
	switch t {
	case MessageTypeSessionRequest, MessageTypeSessionCreated,
		MessageTypeSessionConfirmed, MessageTypeData, MessageTypePeerTest,
		MessageTypeHolePunch, MessageTypeRetry, MessageTypeTokenRequest:
		return t, nil
	}
	return 0, oops.Errorf("undecryptable header")
}

// fakeSender records transmitted packets and signals each send.
type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	ch   chan []byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{ch: make(chan []byte, 64)}
}

func (f *fakeSender) SendPacket(pkt []byte, to net.Addr) error {
	f.mu.Lock()
	buf := make([]byte, len(pkt))
	copy(buf, pkt)
	f.sent = append(f.sent, buf)
	f.mu.Unlock()

	select {
	case f.ch <- buf:
	default:
	}
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) packets() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeInboundHandshake implements InboundHandshake over the test packet
// format. Call counts let tests assert duplicate messages are no-ops.
type fakeInboundHandshake struct {
	mu sync.Mutex

	retryPkt   []byte
	createdPkt []byte
	ackPkt     []byte
	context    *SessionContext
	routerID   identity.RouterID

	failRetryRequest   bool
	failSessionRequest bool

	retryRequestCalls   int
	sessionRequestCalls int
	confirmedCalls      int

	confirmed bool
}

func newFakeInboundHandshake() *fakeInboundHandshake {
	return &fakeInboundHandshake{
		retryPkt:   testPacket(MessageTypeRetry, 0xaa),
		createdPkt: testPacket(MessageTypeSessionCreated, 0xbb),
		ackPkt:     testPacket(MessageTypeData, 0xcc),
		context:    &SessionContext{DestinationID: 1, SourceID: 2},
		routerID:   identity.RouterID("fSLc1FeHCwisNUTNBNEZkL8G5vZL1DELXPezvxFky-o="),
	}
}

func (f *fakeInboundHandshake) MessageType(pkt []byte) (MessageType, error) {
	return classify(pkt)
}

func (f *fakeInboundHandshake) HandleRetryRequest(pkt []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryRequestCalls++
	if f.failRetryRequest {
		return nil, oops.Errorf("invalid initiation")
	}
	return f.retryPkt, nil
}

func (f *fakeInboundHandshake) HandleSessionRequest(pkt []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionRequestCalls++
	if f.failSessionRequest {
		return nil, oops.Errorf("invalid session request")
	}
	return f.createdPkt, nil
}

func (f *fakeInboundHandshake) HandleSessionConfirmed(pkt []byte) (*SessionContext, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmedCalls++
	if err := checkSealedPacket(pkt); err != nil {
		return nil, nil, err
	}
	f.confirmed = true
	return f.context, f.ackPkt, nil
}

func (f *fakeInboundHandshake) RemoteRouterID() identity.RouterID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.confirmed {
		return ""
	}
	return f.routerID
}

func (f *fakeInboundHandshake) calls() (retry, request, confirmed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retryRequestCalls, f.sessionRequestCalls, f.confirmedCalls
}

// fakeOutboundHandshake implements OutboundHandshake over the test packet
// format.
type fakeOutboundHandshake struct {
	mu sync.Mutex

	tokenRequestPkt []byte
	requestPkt      []byte
	confirmedPkt    []byte
	context         *SessionContext

	failRetry   bool
	failCreated bool

	retryCalls     int
	createdCalls   int
	firstDataCalls int
}

func newFakeOutboundHandshake() *fakeOutboundHandshake {
	return &fakeOutboundHandshake{
		tokenRequestPkt: testPacket(MessageTypeTokenRequest, 0x01),
		requestPkt:      testPacket(MessageTypeSessionRequest, 0x02),
		confirmedPkt:    testPacket(MessageTypeSessionConfirmed, 0x03),
		context:         &SessionContext{DestinationID: 3, SourceID: 4},
	}
}

func (f *fakeOutboundHandshake) MessageType(pkt []byte) (MessageType, error) {
	return classify(pkt)
}

func (f *fakeOutboundHandshake) BuildTokenRequest() ([]byte, error) {
	return f.tokenRequestPkt, nil
}

func (f *fakeOutboundHandshake) HandleRetry(pkt []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryCalls++
	if f.failRetry {
		return oops.Errorf("invalid retry")
	}
	return nil
}

func (f *fakeOutboundHandshake) BuildSessionRequest() ([]byte, error) {
	return f.requestPkt, nil
}

func (f *fakeOutboundHandshake) HandleSessionCreated(pkt []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCalls++
	if f.failCreated {
		return oops.Errorf("invalid session created")
	}
	return nil
}

func (f *fakeOutboundHandshake) BuildSessionConfirmed() ([]byte, error) {
	return f.confirmedPkt, nil
}

func (f *fakeOutboundHandshake) HandleFirstData(pkt []byte) (*SessionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.firstDataCalls++
	if err := checkSealedPacket(pkt); err != nil {
		return nil, err
	}
	return f.context, nil
}

func (f *fakeOutboundHandshake) calls() (retry, created, firstData int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retryCalls, f.createdCalls, f.firstDataCalls
}

func testAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
}

// fastSchedules returns timing short enough for tests to observe
// retransmits and timeouts without multi-second waits.
func fastSchedules() ScheduleTable {
	return ScheduleTable{
		RetryTimeout:     40 * time.Millisecond,
		TokenRequest:     RetransmissionSchedule{InitialDelay: 10 * time.Millisecond, Delays: []time.Duration{15 * time.Millisecond}},
		SessionRequest:   RetransmissionSchedule{InitialDelay: 10 * time.Millisecond, Delays: []time.Duration{15 * time.Millisecond}},
		SessionCreated:   RetransmissionSchedule{InitialDelay: 10 * time.Millisecond, Delays: []time.Duration{15 * time.Millisecond}},
		SessionConfirmed: RetransmissionSchedule{InitialDelay: 10 * time.Millisecond, Delays: []time.Duration{15 * time.Millisecond}},
	}
}

// slowSchedules returns timing long enough that no timer fires during a
// test that drives the handshake to completion.
func slowSchedules() ScheduleTable {
	return ScheduleTable{
		RetryTimeout:     time.Minute,
		TokenRequest:     RetransmissionSchedule{InitialDelay: time.Minute, Delays: []time.Duration{time.Minute}},
		SessionRequest:   RetransmissionSchedule{InitialDelay: time.Minute, Delays: []time.Duration{time.Minute}},
		SessionCreated:   RetransmissionSchedule{InitialDelay: time.Minute, Delays: []time.Duration{time.Minute}},
		SessionConfirmed: RetransmissionSchedule{InitialDelay: time.Minute, Delays: []time.Duration{time.Minute}},
	}
}
