package ssu2

import "fmt"

// MessageType identifies an SSU2 packet after header decryption.
//
// https://geti2p.net/spec/ssu2#header
type MessageType uint8

const (
	MessageTypeSessionRequest   MessageType = 0
	MessageTypeSessionCreated   MessageType = 1
	MessageTypeSessionConfirmed MessageType = 2
	MessageTypeData             MessageType = 6
	MessageTypePeerTest         MessageType = 7
	MessageTypeHolePunch        MessageType = 8
	MessageTypeRetry            MessageType = 9
	MessageTypeTokenRequest     MessageType = 10
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeSessionRequest:
		return "SessionRequest"
	case MessageTypeSessionCreated:
		return "SessionCreated"
	case MessageTypeSessionConfirmed:
		return "SessionConfirmed"
	case MessageTypeData:
		return "Data"
	case MessageTypePeerTest:
		return "PeerTest"
	case MessageTypeHolePunch:
		return "HolePunch"
	case MessageTypeRetry:
		return "Retry"
	case MessageTypeTokenRequest:
		return "TokenRequest"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}
