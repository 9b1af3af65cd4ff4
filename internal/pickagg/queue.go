// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pickagg

import (
	"context"
	"sync"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// tickQueue is the bounded handoff between the event state machine and the tensor
// assembler. Overflow drops the oldest non-terminal tick rather than the newest: a
// terminal tick closes an event out in the report log and must never be lost, and a
// stale non-terminal tick is cheaper to skip than to deliver late.
type tickQueue struct {
	mu       sync.Mutex
	items    []seis.TickRequest
	capacity int
	notify   chan struct{}
}

func newTickQueue(capacity int) *tickQueue {
	return &tickQueue{capacity: capacity, notify: make(chan struct{}, 1)}
}

// push enqueues tr, applying drop-oldest-non-terminal backpressure when full. It
// reports whether tr was admitted.
func (q *tickQueue) push(tr seis.TickRequest) bool {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		dropped := false
		for i := range q.items {
			if !q.items[i].Terminal {
				q.items = append(q.items[:i], q.items[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped && !tr.Terminal {
			q.mu.Unlock()
			return false
		}
	}
	q.items = append(q.items, tr)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

func (q *tickQueue) tryPop() (seis.TickRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return seis.TickRequest{}, false
	}
	tr := q.items[0]
	q.items = q.items[1:]
	return tr, true
}

// Next blocks until a tick is available or ctx is canceled.
func (q *tickQueue) Next(ctx context.Context) (seis.TickRequest, bool) {
	for {
		if tr, ok := q.tryPop(); ok {
			return tr, true
		}
		select {
		case <-ctx.Done():
			return seis.TickRequest{}, false
		case <-q.notify:
		}
	}
}

func (q *tickQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
