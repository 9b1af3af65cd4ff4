// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bus is the outward-facing messaging boundary: a NATS client for publishing
// reports and picks and subscribing to the waveform/pick ingest subjects, plus a
// websocket broadcast hub for live report viewers. The NATS half is adapted directly
// from the teacher's pkg/nats client (same connection-option set, same
// disconnect/reconnect/error handler wiring) with the package-level singleton dropped
// in favor of an explicit *Client the pipeline owns and closes.
package bus

import (
	"fmt"
	"sync"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/nats-io/nats.go"
)

// MessageHandler processes one message received on a subject.
type MessageHandler func(subject string, data []byte)

// Client wraps a NATS connection with subscription tracking, the same shape as the
// teacher's nats.Client but instantiated per-process instead of as a singleton.
type Client struct {
	conn          *nats.Conn
	subscriptions []*nats.Subscription
	mu            sync.Mutex
}

// Connect dials address (a nats:// URL). An empty address is a valid, deliberate
// "no outward bus" configuration: Connect returns a nil *Client and nil error, and
// callers must treat a nil *Client's Publish calls as a no-op.
func Connect(address string) (*Client, error) {
	if address == "" {
		cclog.Warn("bus: no NATS address configured, running without an outward bus")
		return nil, nil
	}

	var opts []nats.Option
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			cclog.Warnf("bus: NATS disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		cclog.Infof("bus: NATS reconnected to %s", nc.ConnectedUrl())
	}))
	opts = append(opts, nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		cclog.Errorf("bus: NATS error: %v", err)
	}))

	nc, err := nats.Connect(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus: NATS connect to %s failed: %w", address, err)
	}
	cclog.Infof("bus: NATS connected to %s", address)

	return &Client{subscriptions: make([]*nats.Subscription, 0), conn: nc}, nil
}

// Publish sends data to subject. A nil receiver (no bus configured) is a silent no-op.
func (c *Client) Publish(subject string, data []byte) error {
	if c == nil || c.conn == nil {
		return nil
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("bus: publish to %s failed: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler for subject.
func (c *Client) Subscribe(subject string, handler MessageHandler) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("bus: not connected")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("bus: subscribe to %s failed: %w", subject, err)
	}
	c.subscriptions = append(c.subscriptions, sub)
	cclog.Infof("bus: subscribed to %s", subject)
	return nil
}

// Close unsubscribes everything and closes the connection. Safe to call on a nil
// receiver.
func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			cclog.Warnf("bus: unsubscribe failed: %v", err)
		}
	}
	c.subscriptions = nil
	c.conn.Close()
	cclog.Info("bus: NATS connection closed")
}
