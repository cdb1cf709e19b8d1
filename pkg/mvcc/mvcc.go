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

package mvcc

import (
	"fmt"
	"sync"

	icommon "github.com/dr0pdb/icecanemvcc/internal/common"
	"github.com/dr0pdb/icecanemvcc/pkg/common"
	"github.com/dr0pdb/icecanemvcc/pkg/storage"
	log "github.com/sirupsen/logrus"
)

/*
	Every write is a version of a key owned by a single txn.
	Concurrent writers of the same key are linked into a chain ordered from the
	oldest to the newest writer and the index always points at the newest.

	A writer with an older link can't prepare until the older writer resolves.
	The first one to commit wins: every version layered above a committed
	version is marked aborted and its txn has to roll back.
*/

// Sequencer is the sequence service consumed by the MVCC engine.
// storage.Sequence implements it.
type Sequencer interface {
	// Lock and Unlock guard a consistent read of more than one counter.
	Lock()
	Unlock()

	// NextTSN allocates the next transaction id.
	NextTSN() uint64

	// NextLSN allocates the next global sequence number.
	NextLSN() uint64

	// LSN returns the current global sequence number.
	LSN() uint64
}

// PrepareFunc validates a single version during Prepare.
// Returning anything but Prepare stops the scan and becomes the result of Prepare.
type PrepareFunc func(tx *Transaction, v *Version) State

// ReadResult is the outcome of ReadOwn.
type ReadResult int

const (
	// Absent means the txn hasn't written the key.
	Absent ReadResult = iota

	// Found means the txn has written a value for the key.
	Found

	// Deleted means the txn has deleted the key.
	Deleted
)

func (r ReadResult) String() string {
	switch r {
	case Absent:
		return "absent"
	case Found:
		return "found"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("readresult(%d)", int(r))
	}
}

// MVCC is the Multi Version Concurrency Control layer for transactions.
//
// mu guards the version index along with every chain link reachable from it.
// The registry has its own lock. Operations on it are thread safe.
type MVCC struct {
	conf  *common.EngineConfig
	seq   Sequencer
	alloc storage.Allocator

	mu    sync.RWMutex
	index *versionIndex

	registry *txRegistry

	closed common.ProtectedBool
}

// Begin begins a transaction in the Ready state.
func (m *MVCC) Begin() *Transaction {
	m.ensureOpen("Begin")

	// registering under the sequence lock keeps the watermark monotonic:
	// no txn can become visible in the registry with a bound lower than one
	// already observed by LowWaterMark.
	m.seq.Lock()
	id := m.seq.NextTSN()
	tx := newTransaction(id, boundOf(m.seq.LSN()), newWriteLog(m.alloc))
	m.registry.register(tx)
	m.seq.Unlock()

	m.trace(log.Fields{"txnId": tx.id, "snapshot": tx.snapshotBound}, "mvcc::mvcc::Begin; done")
	return tx
}

// End ends the transaction and releases its log.
// A txn that is still unresolved is rolled back first.
// Ending a txn twice is a protocol violation.
func (m *MVCC) End(tx *Transaction) State {
	m.ensureOpen("End")

	switch tx.state {
	case Undef:
		log.Panicf("mvcc::mvcc::End; txn %d already ended", tx.id)
	case Ready, Prepare:
		log.WithFields(log.Fields{"txnId": tx.id, "state": tx.state}).Warn("mvcc::mvcc::End; ending unresolved txn, rolling back")
		m.Rollback(tx)
	}

	m.registry.deregister(tx)

	if tx.state == Commit && !tx.detached {
		tx.log.iterate(func(v *Version) bool {
			m.Release(v)
			return true
		})
	}

	tx.state = Undef
	tx.log.free()

	m.trace(log.Fields{"txnId": tx.id}, "mvcc::mvcc::End; done")
	return Undef
}

// NewVersion creates a version of key holding a copy of key and value.
// Only FlagDelete is honoured in flags.
// returns common.AllocationError if the allocator refuses the version.
func (m *MVCC) NewVersion(key, value []byte, flags Flags) (*Version, error) {
	size := versionSize(key, value)
	if err := m.alloc.Alloc(size); err != nil {
		return nil, err
	}

	v := &Version{
		Key:  append([]byte(nil), key...),
		size: size,
	}
	if value != nil {
		v.Value = append([]byte(nil), value...)
	}
	v.flags.Store(uint32(flags & FlagDelete))
	return v, nil
}

// Release returns the bytes of a version to the allocator.
// The version must not be linked in a chain.
func (m *MVCC) Release(v *Version) {
	if v.size < 0 {
		log.Panicf("mvcc::mvcc::Release; version of key %q released twice", v.Key)
	}
	m.alloc.Free(v.size)
	v.size = -1
	v.older, v.newer = nil, nil
}

// Put writes value for key in the txn.
func (m *MVCC) Put(tx *Transaction, key, value []byte) error {
	v, err := m.NewVersion(key, value, 0)
	if err != nil {
		return err
	}
	return m.Set(tx, v)
}

// Delete writes a deletion of key in the txn.
func (m *MVCC) Delete(tx *Transaction, key []byte) error {
	v, err := m.NewVersion(key, nil, FlagDelete)
	if err != nil {
		return err
	}
	return m.Set(tx, v)
}

// Set adds the version v to the txn and links it into the chain of its key.
// A repeated write of the same key supersedes the earlier version in place.
//
// Set takes ownership of v. On error v is released and the txn stays usable.
func (m *MVCC) Set(tx *Transaction, v *Version) error {
	m.ensureOpen("Set")

	if tx.state != Ready {
		m.Release(v)
		return icommon.NewInvalidTransactionStateError(fmt.Sprintf("txn %d can't write in state %s", tx.id, tx.state))
	}

	v.owner = tx.id

	m.mu.Lock()
	defer m.mu.Unlock()

	head := m.index.get(v.Key)
	if head == nil {
		if err := tx.log.add(v); err != nil {
			m.Release(v)
			return err
		}
		m.index.set(v)

		m.trace(log.Fields{"txnId": tx.id, "key": string(v.Key)}, "mvcc::mvcc::Set; new chain")
		return nil
	}

	if own := head.match(tx.id); own != nil {
		// the new version takes over the chain position and log slot of own.
		v.older, v.newer = own.older, own.newer
		if v.older != nil {
			v.older.newer = v
		}
		if v.newer != nil {
			v.newer.older = v
		}
		if own.IsAborted() {
			v.setFlag(FlagAborted)
		}
		if own == head {
			m.index.set(v)
		}
		tx.log.replace(own.offset, v)
		own.older, own.newer = nil, nil
		m.Release(own)

		m.trace(log.Fields{"txnId": tx.id, "key": string(v.Key)}, "mvcc::mvcc::Set; replaced own version")
		return nil
	}

	if err := tx.log.add(v); err != nil {
		m.Release(v)
		return err
	}
	v.older = head
	head.newer = v
	m.index.set(v)

	m.trace(log.Fields{"txnId": tx.id, "key": string(v.Key), "waitsOn": head.owner}, "mvcc::mvcc::Set; chained above concurrent writer")
	return nil
}

// Prepare validates the txn. It returns
//   Rollback if a concurrent committer aborted one of its versions,
//   Wait if an older unresolved write blocks one of its versions,
//   the first result of fn other than Prepare,
//   Prepare otherwise, in which case the txn moves to Prepare.
//
// Prepare mutates no shared state and can be retried. A nil fn accepts every version.
func (m *MVCC) Prepare(tx *Transaction, fn PrepareFunc) State {
	m.ensureOpen("Prepare")

	if tx.state != Ready && tx.state != Prepare {
		log.Panicf("mvcc::mvcc::Prepare; txn %d can't prepare in state %s", tx.id, tx.state)
	}

	for i := 0; i < tx.log.len(); i++ {
		v := tx.log.at(i)

		m.mu.RLock()
		aborted, blocked := v.IsAborted(), v.older != nil
		m.mu.RUnlock()

		if aborted {
			m.trace(log.Fields{"txnId": tx.id, "key": string(v.Key)}, "mvcc::mvcc::Prepare; lost conflict")
			return Rollback
		}
		if blocked {
			m.trace(log.Fields{"txnId": tx.id, "key": string(v.Key)}, "mvcc::mvcc::Prepare; waiting on older writer")
			return Wait
		}
		if fn == nil {
			continue
		}
		if rc := fn(tx, v); rc != Prepare {
			return rc
		}
	}

	tx.state = Prepare
	return Prepare
}

// Commit commits a prepared txn.
// Every version written above one of its versions by a concurrent txn is aborted.
// Committing a txn that isn't prepared is a protocol violation.
func (m *MVCC) Commit(tx *Transaction) State {
	m.ensureOpen("Commit")

	if tx.state != Prepare {
		log.Panicf("mvcc::mvcc::Commit; txn %d can't commit in state %s", tx.id, tx.state)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// commit LSNs follow the order in which txns commit.
	m.seq.Lock()
	tx.commitLSN = m.seq.NextLSN()
	m.seq.Unlock()

	tx.log.iterate(func(v *Version) bool {
		if v.older != nil {
			log.Panicf("mvcc::mvcc::Commit; %s still waits on an older writer", v)
		}

		v.abortWaiters()
		v.unlink()

		// the successor, if any, becomes the new chain base. The index keeps
		// pointing at the newest version.
		if v.newer == nil {
			m.index.remove(v.Key)
		}
		v.older, v.newer = nil, nil
		v.LSN = tx.commitLSN
		return true
	})

	tx.state = Commit
	m.trace(log.Fields{"txnId": tx.id, "lsn": tx.commitLSN, "writes": tx.log.len()}, "mvcc::mvcc::Commit; done")
	return Commit
}

// Rollback withdraws every version written by the txn and releases them.
// It never aborts other versions.
func (m *MVCC) Rollback(tx *Transaction) State {
	m.ensureOpen("Rollback")

	if tx.state != Ready && tx.state != Prepare {
		log.Panicf("mvcc::mvcc::Rollback; txn %d can't roll back in state %s", tx.id, tx.state)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx.log.iterate(func(v *Version) bool {
		isHead := v.newer == nil
		v.unlink()

		if isHead {
			if v.older != nil {
				m.index.set(v.older)
			} else {
				m.index.remove(v.Key)
			}
		}
		v.older, v.newer = nil, nil
		m.Release(v)
		return true
	})

	tx.state = Rollback
	m.trace(log.Fields{"txnId": tx.id, "writes": tx.log.len()}, "mvcc::mvcc::Rollback; done")
	return Rollback
}

// ReadOwn returns the txn's own write of key.
// Committed data isn't visible through it.
// The copy is charged to the allocator only while it is made, the charge
// admits the read and isn't held by the returned slice.
// returns common.AllocationError if the allocator refuses the copy.
func (m *MVCC) ReadOwn(tx *Transaction, key []byte) ([]byte, ReadResult, error) {
	m.ensureOpen("ReadOwn")

	m.mu.RLock()
	defer m.mu.RUnlock()

	head := m.index.get(key)
	if head == nil {
		return nil, Absent, nil
	}
	own := head.match(tx.id)
	if own == nil {
		return nil, Absent, nil
	}
	if own.IsDeleted() {
		return nil, Deleted, nil
	}

	if err := m.alloc.Alloc(len(own.Value)); err != nil {
		return nil, Absent, err
	}
	defer m.alloc.Free(len(own.Value))

	res := make([]byte, len(own.Value))
	copy(res, own.Value)
	return res, Found, nil
}

// CheckStatement checks whether a single statement writing key may commit directly.
// It returns Wait if a txn is writing the key, Commit otherwise.
func (m *MVCC) CheckStatement(key []byte) State {
	m.ensureOpen("CheckStatement")

	m.seq.Lock()
	m.seq.NextTSN()
	m.seq.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.index.get(key) != nil {
		return Wait
	}
	return Commit
}

// CheckReadStatement is the CheckStatement of a single statement without a key.
// It always returns Commit.
func (m *MVCC) CheckReadStatement() State {
	m.ensureOpen("CheckReadStatement")

	m.seq.Lock()
	m.seq.NextTSN()
	m.seq.Unlock()
	return Commit
}

// LowWaterMark returns the oldest sequence number still visible to a live txn.
// Versions made obsolete at or below it can be reclaimed.
func (m *MVCC) LowWaterMark() uint64 {
	return m.registry.minSnapshotBound(m.seq)
}

// ActiveCount returns the number of live transactions.
func (m *MVCC) ActiveCount() int {
	return m.registry.len()
}

// IndexedKeys returns the number of keys that have an unresolved writer.
func (m *MVCC) IndexedKeys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index.len()
}

// Chain returns the chain of key ordered from the oldest to the newest version.
func (m *MVCC) Chain(key []byte) []*Version {
	m.mu.RLock()
	defer m.mu.RUnlock()

	head := m.index.get(key)
	if head == nil {
		return nil
	}

	var chain []*Version
	for v := head; v != nil; v = v.older {
		chain = append(chain, v)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Close releases every version held by the engine.
// Live txns are discarded. The engine can't be used after Close.
func (m *MVCC) Close() error {
	if !m.closed.CompareAndSet(false, true) {
		return icommon.NewClosedError("mvcc engine already closed")
	}
	log.Info("mvcc::mvcc::Close; started")

	live := m.registry.drain()
	for _, tx := range live {
		if tx.state == Commit && !tx.detached {
			tx.log.iterate(func(v *Version) bool {
				m.Release(v)
				return true
			})
		}
		tx.log.free()
		tx.state = Undef
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var chains []*Version
	m.index.ascend(func(head *Version) bool {
		chains = append(chains, head)
		return true
	})
	for _, head := range chains {
		for v := head; v != nil; {
			older := v.older
			m.Release(v)
			v = older
		}
	}
	m.index.clear()

	log.WithFields(log.Fields{"discardedTxns": len(live), "discardedChains": len(chains)}).Info("mvcc::mvcc::Close; done")
	return nil
}

func (m *MVCC) ensureOpen(op string) {
	if m.closed.Get() {
		log.Panicf("mvcc::mvcc::%s; engine is closed", op)
	}
}

func (m *MVCC) trace(fields log.Fields, msg string) {
	if m.conf.LogMVCC {
		log.WithFields(fields).Debug(msg)
	}
}

// NewMVCC creates a new MVCC engine.
// A nil comparator defaults to storage.DefaultComparator.
func NewMVCC(conf *common.EngineConfig, seq Sequencer, cmp storage.Comparator, alloc storage.Allocator) *MVCC {
	if cmp == nil {
		cmp = storage.DefaultComparator
	}
	log.WithFields(log.Fields{"comparator": cmp.Name()}).Info("mvcc::mvcc::NewMVCC; creating engine")

	return &MVCC{
		conf:     conf,
		seq:      seq,
		alloc:    alloc,
		index:    newVersionIndex(cmp),
		registry: newTxRegistry(),
	}
}
