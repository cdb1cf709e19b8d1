/**
 * Copyright 2021 The IcecaneDB Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"sync"

	"go.uber.org/atomic"
)

// Sequence is the monotonic number generator shared by the MVCC engine and the
// storage layer. It hands out transaction ids (TSN) and log sequence numbers (LSN).
//
// Single reads and increments are atomic on their own. Callers that need a
// consistent view of more than one counter hold the sequence lock while
// reading them, e.g. the engine when it pairs a new txn id with its snapshot bound.
type Sequence struct {
	mu sync.Mutex

	tsn *atomic.Uint64
	lsn *atomic.Uint64
}

// Lock acquires the sequence lock.
func (s *Sequence) Lock() {
	s.mu.Lock()
}

// Unlock releases the sequence lock.
func (s *Sequence) Unlock() {
	s.mu.Unlock()
}

// NextTSN allocates the next transaction sequence number.
func (s *Sequence) NextTSN() uint64 {
	return s.tsn.Inc()
}

// TSN returns the last allocated transaction sequence number.
func (s *Sequence) TSN() uint64 {
	return s.tsn.Load()
}

// NextLSN allocates the next log sequence number.
func (s *Sequence) NextLSN() uint64 {
	return s.lsn.Inc()
}

// LSN returns the last allocated log sequence number.
func (s *Sequence) LSN() uint64 {
	return s.lsn.Load()
}

// GetSnapshot returns a snapshot at the last allocated LSN.
func (s *Sequence) GetSnapshot() *Snapshot {
	return &Snapshot{
		SeqNum: s.lsn.Load(),
	}
}

// NewSequence creates a new sequence starting right after the given tsn and lsn.
// A freshly created database passes zero for both.
func NewSequence(tsn, lsn uint64) *Sequence {
	return &Sequence{
		tsn: atomic.NewUint64(tsn),
		lsn: atomic.NewUint64(lsn),
	}
}
