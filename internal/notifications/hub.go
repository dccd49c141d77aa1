// Package notifications delivers real-time events to websocket connections.
package notifications

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
)

// AllChannel reaches every attached connection.
const AllChannel = "all"

// UserChannel is the private delivery channel for one user.
func UserChannel(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}

// ChatChannel is the delivery channel for one chat.
func ChatChannel(chatID uint) string {
	return "chat:" + strconv.FormatUint(uint64(chatID), 10)
}

// ConnChannel addresses exactly one connection.
func ConnChannel(connID string) string {
	return "conn:" + connID
}

// Envelope is the wire format of every outbound event.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Encode marshals an event envelope.
func Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Type: event, Payload: payload})
}

// Sink receives encoded frames for one connection.
type Sink interface {
	TrySend(message []byte)
}

// Broadcaster fans events out to subscribed connections.
type Broadcaster interface {
	// Attach registers a connection. It is subscribed to its own channel and AllChannel.
	Attach(connID string, sink Sink)
	// Detach drops the connection and every subscription it holds.
	Detach(connID string)
	Subscribe(connID, channel string)
	Unsubscribe(connID, channel string)
	// Publish delivers to every subscriber of channel except the connection named by except.
	Publish(ctx context.Context, channel, event string, payload any, except string) error
}

// Hub is the in-process Broadcaster.
type Hub struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	channels map[string]map[string]struct{}
	byConn   map[string]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sinks:    make(map[string]Sink),
		channels: make(map[string]map[string]struct{}),
		byConn:   make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Attach(connID string, sink Sink) {
	h.mu.Lock()
	h.sinks[connID] = sink
	h.mu.Unlock()
	h.Subscribe(connID, ConnChannel(connID))
	h.Subscribe(connID, AllChannel)
}

func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.byConn[connID] {
		h.removeLocked(connID, ch)
	}
	delete(h.byConn, connID)
	delete(h.sinks, connID)
}

func (h *Hub) Subscribe(connID, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sinks[connID]; !ok {
		return
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[string]struct{})
		h.channels[channel] = subs
	}
	subs[connID] = struct{}{}

	held, ok := h.byConn[connID]
	if !ok {
		held = make(map[string]struct{})
		h.byConn[connID] = held
	}
	held[channel] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(connID, channel)
	if held, ok := h.byConn[connID]; ok {
		delete(held, channel)
	}
}

func (h *Hub) removeLocked(connID, channel string) {
	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// Subscribed reports whether connID currently receives channel.
func (h *Hub) Subscribed(connID, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[channel][connID]
	return ok
}

func (h *Hub) Publish(_ context.Context, channel, event string, payload any, except string) error {
	data, err := Encode(event, payload)
	if err != nil {
		return err
	}
	h.deliver(channel, data, except)
	return nil
}

// deliver writes an encoded frame to local subscribers.
func (h *Hub) deliver(channel string, data []byte, except string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.channels[channel] {
		if connID == except {
			continue
		}
		if sink := h.sinks[connID]; sink != nil {
			sink.TrySend(data)
		}
	}
}
