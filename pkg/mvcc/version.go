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
	"strings"

	"go.uber.org/atomic"
)

// Flags is the set of markers carried by a Version.
type Flags uint32

const (
	// FlagDelete marks a version as a deletion of its key.
	FlagDelete Flags = 1 << iota

	// FlagAborted marks a version invalidated by a concurrent committer.
	// Only the engine sets it.
	FlagAborted
)

// versionOverhead is the fixed number of bytes charged for every version
// on top of its key and value.
const versionOverhead = 64

// String returns a readable form of the flags, e.g. "delete|aborted".
func (f Flags) String() string {
	var parts []string
	if f&FlagDelete != 0 {
		parts = append(parts, "delete")
	}
	if f&FlagAborted != 0 {
		parts = append(parts, "aborted")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Version is a single write of a key made by a transaction.
//
// While the writing transaction is unresolved the version is linked into the
// chain of its key. older points towards the chain base and newer towards the
// chain head. Chain links are guarded by the engine lock.
type Version struct {
	Key   []byte
	Value []byte

	// LSN is the commit sequence number of the owning txn, stamped by Commit.
	// It is zero while the version is in flight.
	LSN uint64

	flags atomic.Uint32

	// owner is the id of the transaction that wrote this version
	// and offset is its slot in that transaction's write log.
	owner  uint64
	offset int

	older, newer *Version

	// size is the number of bytes charged to the allocator. -1 after release.
	size int
}

// Flags returns the current flags of the version.
func (v *Version) Flags() Flags {
	return Flags(v.flags.Load())
}

// Owner returns the id of the transaction that wrote the version.
func (v *Version) Owner() uint64 {
	return v.owner
}

// Size returns the number of bytes charged for the version.
func (v *Version) Size() int {
	return v.size
}

// IsDeleted reports whether the version is a deletion.
func (v *Version) IsDeleted() bool {
	return v.Flags()&FlagDelete != 0
}

// IsAborted reports whether a concurrent committer invalidated the version.
func (v *Version) IsAborted() bool {
	return v.Flags()&FlagAborted != 0
}

// setFlag requires the engine lock in exclusive mode.
func (v *Version) setFlag(f Flags) {
	v.flags.Store(v.flags.Load() | uint32(f))
}

// match walks the chain from v towards its base and returns the version
// written by the given transaction, if any.
// requires the engine lock.
func (v *Version) match(txnID uint64) *Version {
	for c := v; c != nil; c = c.older {
		if c.owner == txnID {
			return c
		}
	}
	return nil
}

// unlink removes v from its chain by joining its neighbours.
// v keeps its own links so that callers can inspect them afterwards.
// requires the engine lock in exclusive mode.
func (v *Version) unlink() {
	if v.older != nil {
		v.older.newer = v.newer
	}
	if v.newer != nil {
		v.newer.older = v.older
	}
}

// abortWaiters marks every version layered above v as aborted.
// requires the engine lock in exclusive mode.
func (v *Version) abortWaiters() {
	for w := v.newer; w != nil; w = w.newer {
		w.setFlag(FlagAborted)
	}
}

func (v *Version) String() string {
	return fmt.Sprintf("version{key: %q, owner: %d, flags: %s, lsn: %d}", v.Key, v.owner, v.Flags(), v.LSN)
}

func versionSize(key, value []byte) int {
	return versionOverhead + len(key) + len(value)
}
