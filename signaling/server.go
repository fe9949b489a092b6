// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Server is the relay. Participants connect over websocket with
// playerId and gameId query parameters; thereafter the server only
// routes envelopes inside each room. It holds no game state and reads
// no payloads.
type Server struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[string]*relayConn
}

type relayConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (r *relayConn) writeJSON(v any) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(v)
}

// NewServer returns a relay server ready to be mounted on an
// http.ServeMux.
func NewServer(logger *slog.Logger) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			// The relay carries no credentials and no secrets, and
			// room codes gate entry, so any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		rooms: make(map[string]map[string]*relayConn),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("playerId")
	room := r.URL.Query().Get("gameId")
	if !validToken(identity) || !validToken(room) {
		http.Error(w, "playerId and gameId query parameters are required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	participant := &relayConn{conn: conn}
	s.register(room, identity, participant)
	s.logger.Info("participant connected", "room", room, "identity", identity)

	defer func() {
		s.unregister(room, identity, participant)
		conn.Close()
		s.logger.Info("participant disconnected", "room", room, "identity", identity)
	}()

	for {
		var envelope Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			return
		}
		s.route(room, identity, participant, envelope)
	}
}

// route forwards one envelope inside a room. Join envelopes go to the
// host; everything else is addressed by targetId. Routing failures
// come back to the sender as error envelopes, which the sender must
// treat as fatal to the attempt.
func (s *Server) route(room, sender string, from *relayConn, envelope Envelope) {
	targetID := envelope.TargetID
	if envelope.Type == TypeJoin {
		if sender == HostID {
			s.sendError(from, CodeInvalidJoin, "host cannot join its own game")
			return
		}
		targetID = HostID
	} else if targetID == "" {
		s.sendError(from, CodeUnknownTarget, "targetId is required")
		return
	}

	s.mu.Lock()
	target := s.rooms[room][targetID]
	s.mu.Unlock()

	if target == nil {
		if envelope.Type == TypeJoin {
			s.sendError(from, CodeHostNotFound, "no host found for this game code")
		} else {
			s.sendError(from, CodeUnknownTarget, "target participant not found")
		}
		return
	}

	forwarded := Envelope{
		Type:     envelope.Type,
		SenderID: sender,
		Payload:  envelope.Payload,
	}
	if err := target.writeJSON(forwarded); err != nil {
		s.logger.Warn("forwarding envelope failed",
			"room", room, "from", sender, "to", targetID, "type", envelope.Type, "error", err)
	}
}

func (s *Server) sendError(to *relayConn, code, message string) {
	envelope, err := EncodePayload(TypeError, "", ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	if err := to.writeJSON(envelope); err != nil {
		s.logger.Warn("sending error envelope failed", "code", code, "error", err)
	}
}

func (s *Server) register(room, identity string, participant *relayConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.rooms[room]
	if members == nil {
		members = make(map[string]*relayConn)
		s.rooms[room] = members
	}
	if previous, ok := members[identity]; ok {
		// A reconnect under the same identity supersedes the stale
		// connection.
		previous.conn.Close()
	}
	members[identity] = participant
}

func (s *Server) unregister(room, identity string, participant *relayConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[room][identity] == participant {
		delete(s.rooms[room], identity)
		if len(s.rooms[room]) == 0 {
			delete(s.rooms, room)
		}
	}
}
