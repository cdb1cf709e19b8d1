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
	"encoding/binary"
)

// internalKey is the key used for the memtable.
//
// It consists of the user key along with a 8-byte suffix.
// The 8 byte suffix is a little endian uint64 made of:
//    - the low byte defining the kind of operation: delete or set
//    - the high 7 bytes defining the sequence number.
type internalKey []byte

type internalKeyKind uint8

const (
	internalKeyKindDelete internalKeyKind = 0
	internalKeyKindSet    internalKeyKind = 1

	// internalKeyKindMax sorts first among equal sequence numbers. Used for seeks.
	internalKeyKindMax = internalKeyKindSet
)

const (
	internalKeyTrailerLen = 8

	// maxSequenceNumber is the largest sequence number that fits in 7 bytes.
	maxSequenceNumber uint64 = (1 << 56) - 1
)

// newInternalKey generates an internalKey from a userKey, kind and a sequence number.
func newInternalKey(userKey []byte, kind internalKeyKind, sequenceNumber uint64) internalKey {
	if sequenceNumber > maxSequenceNumber {
		panic("sequence number doesn't fit in an internal key")
	}

	ik := make(internalKey, len(userKey)+internalKeyTrailerLen)
	n := copy(ik, userKey)
	binary.LittleEndian.PutUint64(ik[n:], sequenceNumber<<8|uint64(kind))
	return ik
}

// userKey extracts the user key from the internal key.
// The returned slice shares memory with the internal key.
func (ik internalKey) userKey() []byte {
	return []byte(ik[:len(ik)-internalKeyTrailerLen])
}

func (ik internalKey) trailer() uint64 {
	return binary.LittleEndian.Uint64(ik[len(ik)-internalKeyTrailerLen:])
}

// kind extracts the key kind from an internal key.
func (ik internalKey) kind() internalKeyKind {
	return internalKeyKind(ik.trailer() & 0xff)
}

// sequenceNumber returns the sequence number of the internal key.
func (ik internalKey) sequenceNumber() uint64 {
	return ik.trailer() >> 8
}

// valid returns if the internal key is valid structurally.
func (ik internalKey) valid() bool {
	if len(ik) < internalKeyTrailerLen {
		return false
	}
	k := ik.kind()
	return k == internalKeyKindDelete || k == internalKeyKindSet
}

// internalKeyComparator is the comparator which uses a user key comparator to compare internal key.
//
// keys are first compared for their user key according to the user key comparator.
// ties are broken by comparing sequence number (decreasing) and then by kind (decreasing).
type internalKeyComparator struct {
	userKeyComparator Comparator
}

func (d *internalKeyComparator) Compare(a, b []byte) int {
	ia, ib := internalKey(a), internalKey(b)
	if r := d.userKeyComparator.Compare(ia.userKey(), ib.userKey()); r != 0 {
		return r
	}

	ta, tb := ia.trailer(), ib.trailer()
	switch {
	case ta > tb:
		return -1
	case ta < tb:
		return 1
	default:
		return 0
	}
}

func (d *internalKeyComparator) Name() string {
	return "InternalKeyComparator"
}

// newInternalKeyComparator creates a new instance of an internalKeyComparator
// returns a pointer to the Comparator interface.
func newInternalKeyComparator(userKeyComparator Comparator) Comparator {
	return &internalKeyComparator{
		userKeyComparator: userKeyComparator,
	}
}
