/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"sync"
	"sync/atomic"
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const teardownQueueHint = 64

type teardownRequest struct {
	name string
	due  time.Time
}

// teardownScheduler runs delayed teardowns for one MmapTransport. Requests are
// queued in FIFO order; with a fixed grace delay that is also deadline order,
// so a single loop waiting on the head is enough.
type teardownScheduler struct {
	q    *queuepkg.Queue
	pool *ants.Pool
	run  func(name string, due time.Time)
	log  *zap.Logger
	// 1 while the loop holds a request it has taken off the queue
	inFlight atomic.Int64

	stopCh  chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newTeardownScheduler(pool *ants.Pool, run func(name string, due time.Time), log *zap.Logger) *teardownScheduler {
	s := &teardownScheduler{
		q:       queuepkg.New(teardownQueueHint),
		pool:    pool,
		run:     run,
		log:     log,
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *teardownScheduler) schedule(name string, due time.Time) error {
	return s.q.Put(teardownRequest{name: name, due: due})
}

// backlog returns the number of requests not yet dispatched, including the
// one the loop is waiting on.
func (s *teardownScheduler) backlog() int64 {
	return s.q.Len() + s.inFlight.Load()
}

func (s *teardownScheduler) loop() {
	defer close(s.stopped)
	for {
		items, err := s.q.Get(1)
		if err != nil {
			// queue disposed
			return
		}
		for _, item := range items {
			req, ok := item.(teardownRequest)
			if !ok {
				continue
			}
			s.inFlight.Store(1)
			due := s.waitUntil(req.due)
			s.inFlight.Store(0)
			if !due {
				return
			}
			s.dispatch(req)
		}
	}
}

func (s *teardownScheduler) waitUntil(due time.Time) bool {
	d := time.Until(due)
	if d <= 0 {
		select {
		case <-s.stopCh:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stopCh:
		return false
	}
}

func (s *teardownScheduler) dispatch(req teardownRequest) {
	if err := s.pool.Submit(func() { s.run(req.name, req.due) }); err != nil {
		s.log.Debug("teardown pool unavailable, running inline", zap.String("name", req.name), zap.Error(err))
		s.run(req.name, req.due)
	}
}

// stop discards queued requests and waits for the loop to exit. Requests
// already handed to the pool keep running.
func (s *teardownScheduler) stop() {
	s.once.Do(func() {
		close(s.stopCh)
		s.q.Dispose()
	})
	<-s.stopped
}
