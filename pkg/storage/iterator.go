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

// Iterator interface
type Iterator interface {
	// Checks if the current position of the iterator is valid.
	Valid() bool

	// Move to the first entry of the source.
	// Call Valid() to ensure that the iterator is valid after the seek.
	SeekToFirst()

	// Seek the iterator to the first element whose key is >= target
	// Call Valid() to ensure that the iterator is valid after the seek.
	Seek(target []byte)

	// Moves to the next key-value pair in the source.
	// Call valid() to ensure that the iterator is valid.
	// REQUIRES: Current position of iterator is valid. Panic otherwise.
	Next()

	// Get the key of the current iterator position.
	// REQUIRES: Current position of iterator is valid. Panics otherwise.
	Key() []byte

	// Get the value of the current iterator position.
	// REQUIRES: Current position of iterator is valid. Panics otherwise.
	Value() []byte
}

// VersionIterator walks every committed version held by a memtable,
// ordered by user key and then by decreasing sequence number.
type VersionIterator struct {
	itr *skipListIterator
}

var _ Iterator = (*VersionIterator)(nil)

// Valid checks if the current position of the iterator is valid.
func (vi *VersionIterator) Valid() bool {
	return vi.itr.Valid()
}

// SeekToFirst moves to the first entry of the source.
// Call Valid() to ensure that the iterator is valid after the seek.
func (vi *VersionIterator) SeekToFirst() {
	vi.itr.SeekToFirst()
}

// Seek moves to the newest version of the first user key >= target.
// Call Valid() to ensure that the iterator is valid after the seek.
func (vi *VersionIterator) Seek(target []byte) {
	vi.itr.Seek(newInternalKey(target, internalKeyKindMax, maxSequenceNumber))
}

// Next moves to the next version.
// Call valid() to ensure that the iterator is valid.
// REQUIRES: Current position of iterator is valid. Panic otherwise.
func (vi *VersionIterator) Next() {
	vi.itr.Next()
}

// Key returns the user key of the current iterator position.
// REQUIRES: Current position of iterator is valid. Panics otherwise.
func (vi *VersionIterator) Key() []byte {
	// extract the user key out of the internal key
	ikey := internalKey(vi.itr.Key())
	return ikey.userKey()
}

// Value gets the value of the current iterator position.
// REQUIRES: Current position of iterator is valid. Panics otherwise.
func (vi *VersionIterator) Value() []byte {
	return vi.itr.Value()
}

// SequenceNumber returns the LSN of the current version.
// REQUIRES: Current position of iterator is valid. Panics otherwise.
func (vi *VersionIterator) SequenceNumber() uint64 {
	return internalKey(vi.itr.Key()).sequenceNumber()
}

// IsDeleted reports whether the current version is a tombstone.
// REQUIRES: Current position of iterator is valid. Panics otherwise.
func (vi *VersionIterator) IsDeleted() bool {
	return internalKey(vi.itr.Key()).kind() == internalKeyKindDelete
}
