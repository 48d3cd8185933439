// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agentic

import "sync"

// SessionLocks serialises turns within one session: a second concurrent
// turn on the same session is rejected rather than interleaved, since two
// turns racing to append to the same message history would corrupt turn
// ordering (spec.md §5, §9 "concurrent-turn handling").
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSessionLocks constructs an empty lock table.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sync.Mutex)}
}

func (s *SessionLocks) lockFor(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// TryAcquire attempts to claim the session for the duration of one turn.
// It returns false immediately, without blocking, if another turn already
// holds it — callers surface this as KindSessionBusy rather than queuing.
func (s *SessionLocks) TryAcquire(sessionID string) bool {
	return s.lockFor(sessionID).TryLock()
}

// Release frees the session lock acquired by a successful TryAcquire.
func (s *SessionLocks) Release(sessionID string) {
	s.lockFor(sessionID).Unlock()
}
