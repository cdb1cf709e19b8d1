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
	"github.com/dr0pdb/icecanemvcc/pkg/storage"
)

// logSlotSize is the number of bytes charged for a single write log slot.
const logSlotSize = 16

// writeLog is the ordered set of versions written by one transaction.
// Each (transaction, key) pair owns exactly one slot.
//
// It is owned by its transaction and is not thread safe.
type writeLog struct {
	entries []*Version
	alloc   storage.Allocator
}

func newWriteLog(alloc storage.Allocator) *writeLog {
	return &writeLog{
		alloc: alloc,
	}
}

// add appends v and records its slot in v.offset.
// returns common.AllocationError if the slot couldn't be allocated.
func (l *writeLog) add(v *Version) error {
	if err := l.alloc.Alloc(logSlotSize); err != nil {
		return err
	}
	v.offset = len(l.entries)
	l.entries = append(l.entries, v)
	return nil
}

// replace puts v in the slot at offset, superseding its current occupant.
func (l *writeLog) replace(offset int, v *Version) {
	v.offset = offset
	l.entries[offset] = v
}

func (l *writeLog) len() int {
	return len(l.entries)
}

func (l *writeLog) at(i int) *Version {
	return l.entries[i]
}

// iterate calls fn on every version in insertion order until fn returns false.
func (l *writeLog) iterate(fn func(v *Version) bool) {
	for _, v := range l.entries {
		if !fn(v) {
			return
		}
	}
}

// versions returns a copy of the log in insertion order.
func (l *writeLog) versions() []*Version {
	res := make([]*Version, len(l.entries))
	copy(res, l.entries)
	return res
}

// free releases every slot. The versions are not released.
func (l *writeLog) free() {
	if n := len(l.entries); n > 0 {
		l.alloc.Free(n * logSlotSize)
	}
	l.entries = nil
}
