// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package bus

import (
	"net/http"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub fans every published Report out to every connected websocket viewer, the "view
// channel" the gorilla/websocket dependency exists for but the teacher never itself
// wires up past its go.mod entry.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*viewer]bool
}

type viewer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*viewer]bool),
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and registers it as a
// viewer. It blocks, pumping writes, until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cclog.Warnf("bus: websocket upgrade failed: %v", err)
		return
	}

	v := &viewer{id: uuid.NewString(), conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[v] = true
	h.mu.Unlock()
	cclog.Infof("bus: viewer %s connected", v.id)

	defer func() {
		h.mu.Lock()
		delete(h.clients, v)
		h.mu.Unlock()
		conn.Close()
		cclog.Infof("bus: viewer %s disconnected", v.id)
	}()

	go v.readPump()
	v.writePump()
}

func (v *viewer) readPump() {
	defer v.conn.Close()
	v.conn.SetReadLimit(512)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			close(v.send)
			return
		}
	}
}

func (v *viewer) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-v.send:
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast sends payload to every currently connected viewer. A viewer whose send
// buffer is full is dropped rather than allowed to back-pressure the broadcaster.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.clients {
		select {
		case v.send <- payload:
		default:
			delete(h.clients, v)
			close(v.send)
		}
	}
}

// ClientCount reports how many viewers are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
