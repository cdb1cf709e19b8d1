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
	"fmt"

	"github.com/dr0pdb/icecanemvcc/internal/common"
	log "github.com/sirupsen/logrus"
)

// Memtable is the in-memory store receiving committed versions from the MVCC engine.
// Every committed version is kept under its own LSN until the collector drops it.
//
// It is thread safe and can be accessed concurrently.
type Memtable struct {
	skiplist   *skipList
	comparator Comparator
}

// Set records a committed value for key at the given lsn.
func (m *Memtable) Set(key, value []byte, lsn uint64) {
	log.WithFields(log.Fields{
		"key": string(key),
		"lsn": lsn,
	}).Debug("storage::memtable::Set; started")

	m.skiplist.set(newInternalKey(key, internalKeyKindSet, lsn), value)
}

// Delete records a committed tombstone for key at the given lsn.
func (m *Memtable) Delete(key []byte, lsn uint64) {
	log.WithFields(log.Fields{
		"key": string(key),
		"lsn": lsn,
	}).Debug("storage::memtable::Delete; started")

	m.skiplist.set(newInternalKey(key, internalKeyKindDelete, lsn), nil)
}

// Get returns the newest value of key visible at the snapshot.
// returns NotFoundError if the key has no version at or below the snapshot
// or if that version is a tombstone.
func (m *Memtable) Get(key []byte, snapshot *Snapshot) ([]byte, error) {
	seek := newInternalKey(key, internalKeyKindMax, snapshot.SeqNumber())
	node := m.skiplist.getEqualOrGreater(seek)
	if node == nil {
		return nil, common.NewNotFoundError(fmt.Sprintf("key %s not found", key))
	}

	ikey := internalKey(node.getKey())
	if m.comparator.Compare(ikey.userKey(), key) != 0 {
		return nil, common.NewNotFoundError(fmt.Sprintf("key %s not found", key))
	}
	if ikey.kind() == internalKeyKindDelete {
		return nil, common.NewNotFoundError(fmt.Sprintf("key %s deleted at %d", key, ikey.sequenceNumber()))
	}
	return node.getValue(), nil
}

// Remove drops the version of key recorded at lsn.
// returns false when no such version exists.
func (m *Memtable) Remove(key []byte, lsn uint64) bool {
	for _, kind := range []internalKeyKind{internalKeyKindSet, internalKeyKindDelete} {
		if node := m.skiplist.delete(newInternalKey(key, kind, lsn)); node != nil {
			log.WithFields(log.Fields{
				"key": string(key),
				"lsn": lsn,
			}).Debug("storage::memtable::Remove; dropped version")

			return true
		}
	}
	return false
}

// Len returns the number of versions held by the memtable.
func (m *Memtable) Len() int {
	return m.skiplist.len()
}

// NewIterator returns an iterator over all the versions in the memtable.
func (m *Memtable) NewIterator() *VersionIterator {
	return &VersionIterator{
		itr: m.skiplist.newSkipListIterator(),
	}
}

// NewMemtable returns a new instance of the Memtable
func NewMemtable(opts *Options) *Memtable {
	comparator := opts.comparator()
	internalKeyComparator := newInternalKeyComparator(comparator)
	return &Memtable{
		skiplist:   newSkipList(opts.maxLevel(), internalKeyComparator),
		comparator: comparator,
	}
}
