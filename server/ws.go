//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/log"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

// Inbound websocket message types.
const (
	msgStartWorkflow       = "start_workflow"
	msgUserPrompt          = "user_prompt"
	msgUserClarifyResponse = "user_clarify_response"
	msgPing                = "ping"
)

// sendBuffer bounds the per-connection outbound event queue.
const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origins are screened by the cors layer; the socket accepts all.
	CheckOrigin: func(*http.Request) bool { return true },
}

// inboundMessage is the client→server websocket frame.
type inboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsClient adapts one websocket connection to the event bus subscriber
// contract. Events are buffered through a channel so a slow socket never
// blocks the workflow; a full buffer drops the event.
type wsClient struct {
	conn *websocket.Conn
	send chan *event.Event
	done chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan *event.Event, sendBuffer),
		done: make(chan struct{}),
	}
}

// SendEvent implements event.Subscriber.
func (c *wsClient) SendEvent(ev *event.Event) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	case c.send <- ev:
		return nil
	default:
		return errors.New("send buffer full, event dropped")
	}
}

// writeLoop serializes outbound events onto the socket.
func (c *wsClient) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Warnf("websocket write failed: %v", err)
				c.close()
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// handleWS serves the session's live channel. Closing the socket only
// deregisters the subscriber; the session's state and checkpoints survive for
// a later reconnect.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed for session %s: %v", sessionID, err)
		return
	}

	client := newWSClient(conn)
	s.cfg.Registry.Connect(sessionID)
	s.cfg.Bus.Subscribe(sessionID, client)
	go client.writeLoop()

	defer func() {
		s.cfg.Bus.Unsubscribe(sessionID, client)
		client.close()
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("websocket read failed for session %s: %v", sessionID, err)
			}
			return
		}
		s.dispatch(sessionID, msg)
	}
}

// dispatch handles one inbound frame.
func (s *Server) dispatch(sessionID string, msg inboundMessage) {
	switch msg.Type {
	case msgPing:
		s.cfg.Bus.Publish(sessionID, event.New(event.TypePong, "server", "pong"))
	case msgStartWorkflow, msgUserPrompt:
		s.runOrQueue(sessionID, msg.Message)
	case msgUserClarifyResponse:
		if strings.TrimSpace(msg.Message) == "" {
			s.cfg.Bus.Publish(sessionID, event.New(event.TypeMessageError, "server",
				"clarification response must not be empty"))
			return
		}
		s.runOrQueue(sessionID, msg.Message)
	default:
		s.cfg.Bus.Publish(sessionID, event.New(event.TypeMessageError, "server",
			"unknown message type: "+msg.Type))
	}
}

// runOrQueue starts a run with the input, or queues it when a run is already
// executing for the session.
func (s *Server) runOrQueue(sessionID, input string) {
	go func() {
		err := s.cfg.Engine.Run(context.Background(), sessionID, input)
		switch {
		case errors.Is(err, workflow.ErrRunInProgress):
			s.cfg.Queue.Push(sessionID, input)
		case err != nil:
			log.Errorf("run failed for session %s: %v", sessionID, err)
		}
	}()
}
