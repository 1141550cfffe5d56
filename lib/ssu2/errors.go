package ssu2

import "github.com/samber/oops"

var (
	ErrSessionClosed     = oops.New("pending session is closed")
	ErrNilHandshake      = oops.New("handshake collaborator is nil")
	ErrNilSender         = oops.New("packet sender is nil")
	ErrRegistryClosed    = oops.New("session registry is closed")
	ErrConnectionIDInUse = oops.New("connection ID already registered")
	ErrInboundRateLimit  = oops.New("inbound handshake rate limit exceeded")
)
