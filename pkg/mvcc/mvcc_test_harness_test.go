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
	"testing"

	"github.com/dr0pdb/icecanemvcc/pkg/common"
	"github.com/dr0pdb/icecanemvcc/pkg/storage"
	"github.com/stretchr/testify/assert"
)

// mvccTestHarness is an engine wired to its own sequence and allocator.
type mvccTestHarness struct {
	seq   *storage.Sequence
	alloc storage.Allocator
	mvcc  *MVCC
}

// newMvccTestHarness creates an engine whose sequence currently stands at lsn.
// A limit <= 0 leaves the allocator unbounded.
func newMvccTestHarness(lsn uint64, limit int64) *mvccTestHarness {
	conf := common.NewDefaultEngineConfig()
	conf.LogMVCC = true

	seq := storage.NewSequence(0, lsn)
	alloc := storage.NewAllocator(limit)
	return &mvccTestHarness{
		seq:   seq,
		alloc: alloc,
		mvcc:  NewMVCC(conf, seq, storage.DefaultComparator, alloc),
	}
}

func (h *mvccTestHarness) put(t *testing.T, tx *Transaction, key, value string) {
	err := h.mvcc.Put(tx, []byte(key), []byte(value))
	assert.Nil(t, err, "Unexpected error in writing key %s", key)
}

func (h *mvccTestHarness) owners(key string) []uint64 {
	var res []uint64
	for _, v := range h.mvcc.Chain([]byte(key)) {
		res = append(res, v.Owner())
	}
	return res
}

func (h *mvccTestHarness) cleanup() {
	h.mvcc.Close()
}
