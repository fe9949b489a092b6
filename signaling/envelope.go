// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// Package signaling implements the rendezvous wire protocol: the
// envelope format, a websocket client for participants, and the relay
// server that routes envelopes between them.
//
// The relay never interprets payloads. It knows only room membership
// and participant identities, routes by targetId, and stamps senderId
// on everything it forwards. Application data never touches it; once a
// peer session is established the relay connection is dead weight.
package signaling

import (
	"encoding/json"
	"fmt"
)

// HostID is the reserved participant identity of the room's host.
// Join envelopes are routed to it implicitly.
const HostID = "HOST"

// Envelope types.
const (
	TypeJoin            = "join"
	TypeOffer           = "offer"
	TypeAnswer          = "answer"
	TypeICECandidate    = "ice-candidate"
	TypePlayerConnected = "player-connected"
	TypeError           = "error"
)

// Error codes carried by error envelopes. The recipient must treat
// any error envelope as fatal to the current connection attempt.
const (
	CodeHostNotFound  = "HOST_NOT_FOUND"
	CodeInvalidJoin   = "INVALID_JOIN"
	CodeUnknownTarget = "UNKNOWN_TARGET"
)

// Envelope is the unit the relay routes. SenderID is stamped by the
// relay on forwarded envelopes; clients never set it. TargetID is
// consumed by the relay and stripped before forwarding.
type Envelope struct {
	Type     string          `json:"type"`
	SenderID string          `json:"senderId,omitempty"`
	TargetID string          `json:"targetId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// SessionDescription is the payload of offer and answer envelopes.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is the payload of ice-candidate envelopes. The shape
// mirrors the browser RTCIceCandidateInit dictionary so either end of
// the relay can speak to a web client.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// ErrorPayload is the payload of error envelopes.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PlayerConnected is the payload of the host's announcement that a
// new participant's channel opened.
type PlayerConnected struct {
	PlayerID string `json:"playerId"`
}

// DecodePayload unmarshals an envelope's payload into out.
func DecodePayload(envelope Envelope, out any) error {
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%s envelope has no payload", envelope.Type)
	}
	if err := json.Unmarshal(envelope.Payload, out); err != nil {
		return fmt.Errorf("decoding %s payload: %w", envelope.Type, err)
	}
	return nil
}

// EncodePayload builds an envelope with a JSON-encoded payload.
func EncodePayload(envelopeType, targetID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", envelopeType, err)
	}
	return Envelope{Type: envelopeType, TargetID: targetID, Payload: raw}, nil
}
