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

	log "github.com/sirupsen/logrus"
)

// State is the state of a transaction.
type State int

const (
	// Undef is the state of a transaction that has ended (or never began).
	Undef State = iota

	// Ready is the state after begin while the transaction is writing.
	Ready

	// Prepare is the state of a validated transaction that may commit.
	Prepare

	// Commit is the terminal state of a committed transaction.
	Commit

	// Rollback is the terminal state of a rolled back transaction.
	// Prepare also returns it when the transaction lost a conflict.
	Rollback

	// Wait is returned by Prepare when an older unresolved write blocks the
	// transaction. It is never stored.
	Wait
)

func (s State) String() string {
	switch s {
	case Undef:
		return "undef"
	case Ready:
		return "ready"
	case Prepare:
		return "prepare"
	case Commit:
		return "commit"
	case Rollback:
		return "rollback"
	case Wait:
		return "wait"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transaction is an MVCC transaction.
// It implements an optimistic concurrency control protocol.
// A single transaction is not thread safe.
// Operations on a single txn should be called sequentially.
type Transaction struct {
	// unique transaction id
	id uint64

	// snapshotBound is the last sequence number visible to the txn at begin.
	snapshotBound uint64

	state State

	// log holds one version per key written by the txn.
	log *writeLog

	// commitLSN is the sequence number allocated by Commit.
	commitLSN uint64

	// detached is set once the committed versions have been handed off.
	// End doesn't release detached versions.
	detached bool
}

// newTransaction creates a new transaction.
func newTransaction(id, snapshotBound uint64, wl *writeLog) *Transaction {
	return &Transaction{
		id:            id,
		snapshotBound: snapshotBound,
		state:         Ready,
		log:           wl,
	}
}

// ID returns the id of the transaction.
func (t *Transaction) ID() uint64 {
	return t.id
}

// SnapshotBound returns the last sequence number visible to the transaction.
func (t *Transaction) SnapshotBound() uint64 {
	return t.snapshotBound
}

// State returns the current state of the transaction.
func (t *Transaction) State() State {
	return t.state
}

// CommitLSN returns the sequence number the txn committed at, zero before commit.
func (t *Transaction) CommitLSN() uint64 {
	return t.commitLSN
}

// Detached reports whether the committed versions were already detached.
func (t *Transaction) Detached() bool {
	return t.detached
}

// Versions returns the versions written by the transaction in write order.
// After commit these are the versions to hand to the storage layer.
func (t *Transaction) Versions() []*Version {
	if t.log == nil {
		return nil
	}
	return t.log.versions()
}

// Detach transfers the ownership of the committed versions to the caller.
// The versions stay valid after End and the caller becomes responsible for
// returning their bytes to the allocator.
func (t *Transaction) Detach() []*Version {
	if t.state != Commit {
		log.Panicf("mvcc::transaction::Detach; txn %d is in state %s, want %s", t.id, t.state, Commit)
	}
	if t.detached {
		log.Panicf("mvcc::transaction::Detach; txn %d already detached", t.id)
	}
	t.detached = true
	return t.log.versions()
}

func (t *Transaction) String() string {
	return fmt.Sprintf("txn{id: %d, snapshot: %d, state: %s, writes: %d}", t.id, t.snapshotBound, t.state, t.writes())
}

func (t *Transaction) writes() int {
	if t.log == nil {
		return 0
	}
	return t.log.len()
}
