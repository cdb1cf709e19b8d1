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

// Snapshot denotes a read-only view of the committed data up to SeqNum.
type Snapshot struct {
	SeqNum uint64
}

// SeqNumber returns the seq number of the snapshot
func (s *Snapshot) SeqNumber() uint64 {
	return s.SeqNum
}

// NewSnapshot creates a snapshot at the given sequence number.
func NewSnapshot(seq uint64) *Snapshot {
	return &Snapshot{
		SeqNum: seq,
	}
}
