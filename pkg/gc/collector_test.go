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

package gc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dr0pdb/icecanemvcc/internal/common"
	pcommon "github.com/dr0pdb/icecanemvcc/pkg/common"
	"github.com/dr0pdb/icecanemvcc/pkg/mvcc"
	"github.com/dr0pdb/icecanemvcc/pkg/storage"
	"github.com/dr0pdb/icecanemvcc/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectorTestHarness struct {
	seq       *storage.Sequence
	alloc     storage.Allocator
	mem       *storage.Memtable
	mvcc      *mvcc.MVCC
	collector *Collector
}

func newCollectorTestHarness() *collectorTestHarness {
	conf := pcommon.NewDefaultEngineConfig()
	conf.LogGC = true

	seq := storage.NewSequence(0, 1)
	alloc := storage.NewAllocator(0)
	mem := storage.NewMemtable(nil)
	engine := mvcc.NewMVCC(conf, seq, storage.DefaultComparator, alloc)
	return &collectorTestHarness{
		seq:       seq,
		alloc:     alloc,
		mem:       mem,
		mvcc:      engine,
		collector: NewCollector(conf, engine, mem, alloc),
	}
}

// commitOnly writes value for key in its own txn and commits it.
// A nil value deletes the key. The txn is left live.
func (h *collectorTestHarness) commitOnly(t *testing.T, key, value []byte) *mvcc.Transaction {
	tx := h.mvcc.Begin()
	var err error
	if value == nil {
		err = h.mvcc.Delete(tx, key)
	} else {
		err = h.mvcc.Put(tx, key, value)
	}
	require.Nil(t, err)
	require.Equal(t, mvcc.Prepare, h.mvcc.Prepare(tx, nil))
	require.Equal(t, mvcc.Commit, h.mvcc.Commit(tx))
	return tx
}

// commit writes value for key in its own txn, hands the txn off and ends it.
func (h *collectorTestHarness) commit(t *testing.T, key, value []byte) (uint64, *mvcc.Version) {
	tx := h.commitOnly(t, key, value)

	v := tx.Versions()[0]
	lsn, err := h.collector.Handoff(tx)
	require.Nil(t, err)
	h.mvcc.End(tx)
	return lsn, v
}

func TestHandoffWritesMemtable(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	lsn, v := h.commit(t, test.TestKeys[0], test.TestValues[0])
	assert.Equal(t, uint64(2), lsn)
	assert.Equal(t, lsn, v.LSN, "the version should carry its commit lsn")

	val, err := h.mem.Get(test.TestKeys[0], storage.NewSnapshot(lsn))
	assert.Nil(t, err)
	assert.Equal(t, test.TestValues[0], val)

	_, err = h.mem.Get(test.TestKeys[0], storage.NewSnapshot(lsn-1))
	assert.IsType(t, common.NotFoundError{}, err)

	assert.Equal(t, int64(v.Size()), h.alloc.InUse(), "handed off versions stay charged until collected")

	tx := h.mvcc.Begin()
	_, err = h.collector.Handoff(tx)
	assert.IsType(t, common.InvalidTransactionStateError{}, err)
	h.mvcc.End(tx)
}

func TestHandoffStampsOneLSNPerTxn(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	tx := h.mvcc.Begin()
	for i := range test.TestKeys {
		require.Nil(t, h.mvcc.Put(tx, test.TestKeys[i], test.TestValues[i]))
	}
	require.Equal(t, mvcc.Prepare, h.mvcc.Prepare(tx, nil))
	h.mvcc.Commit(tx)

	lsn, err := h.collector.Handoff(tx)
	require.Nil(t, err)
	for _, v := range tx.Versions() {
		assert.Equal(t, lsn, v.LSN)
	}
	h.mvcc.End(tx)

	assert.Equal(t, len(test.TestKeys), h.mem.Len())
	for i := range test.TestKeys {
		val, err := h.mem.Get(test.TestKeys[i], storage.NewSnapshot(lsn))
		assert.Nil(t, err)
		assert.Equal(t, test.TestValues[i], val)
	}
}

func TestCollectRespectsWatermark(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	_, v1 := h.commit(t, test.TestKeys[0], test.TestValues[0])

	// reader pins the watermark below every later commit.
	reader := h.mvcc.Begin()

	h.commit(t, test.TestKeys[0], test.TestValues[1])
	_, v3 := h.commit(t, test.TestKeys[0], test.TestValues[2])
	assert.Equal(t, 2, h.collector.Pending())

	assert.Equal(t, 0, h.collector.Collect(), "the reader can still observe every version")
	assert.Equal(t, 3, h.mem.Len())

	h.mvcc.End(reader)
	before := h.alloc.InUse()
	assert.Equal(t, 1, h.collector.Collect(), "only the version obsoleted below the watermark goes")
	assert.Equal(t, int64(v1.Size()), before-h.alloc.InUse())
	assert.Equal(t, 1, h.collector.Pending())

	h.commit(t, test.TestKeys[1], test.TestValues[1])
	assert.Equal(t, 1, h.collector.Collect())
	assert.Equal(t, 0, h.collector.Pending())
	assert.Equal(t, 2, h.mem.Len())

	val, err := h.mem.Get(test.TestKeys[0], storage.NewSnapshot(h.seq.LSN()))
	assert.Nil(t, err)
	assert.Equal(t, test.TestValues[2], val)
	assert.Equal(t, v3.LSN, uint64(4))
}

func TestCollectTombstone(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	h.commit(t, test.TestKeys[0], test.TestValues[0])
	h.commit(t, test.TestKeys[0], nil)
	_, other := h.commit(t, test.TestKeys[1], test.TestValues[1])

	assert.Equal(t, 2, h.collector.Collect(), "the value and the tombstone hiding it should go")
	assert.Equal(t, 1, h.mem.Len())
	assert.Equal(t, int64(other.Size()), h.alloc.InUse())

	_, err := h.mem.Get(test.TestKeys[0], storage.NewSnapshot(h.seq.LSN()))
	assert.IsType(t, common.NotFoundError{}, err)
}

func TestCollectTombstoneOverwritten(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	h.commit(t, test.TestKeys[0], test.TestValues[0])
	h.commit(t, test.TestKeys[0], nil)
	h.commit(t, test.TestKeys[0], test.TestValues[1])
	h.commit(t, test.TestKeys[1], test.TestValues[1])

	assert.Equal(t, 2, h.collector.Collect())
	assert.Equal(t, 0, h.collector.Pending())
	assert.Equal(t, 2, h.mem.Len())

	val, err := h.mem.Get(test.TestKeys[0], storage.NewSnapshot(h.seq.LSN()))
	assert.Nil(t, err)
	assert.Equal(t, test.TestValues[1], val)
}

func TestCollectorStartStop(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	for i := range test.TestValues {
		h.commit(t, test.TestKeys[0], test.TestValues[i])
	}
	h.commit(t, test.TestKeys[1], test.TestValues[0])
	require.Equal(t, len(test.TestValues)-1, h.collector.Pending())

	h.collector.Start(context.Background(), 5*time.Millisecond)
	h.collector.Start(context.Background(), 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return h.collector.Pending() == 0
	}, time.Second, 5*time.Millisecond)

	h.collector.Stop()
	h.collector.Stop()
	assert.Equal(t, 2, h.mem.Len())
}

func TestCollectorStopsWithContext(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	h.collector.Start(ctx, time.Millisecond)
	cancel()

	// Stop still returns once the loop has exited on its own.
	h.collector.Stop()
}

func TestHandoffTwice(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	tx := h.commitOnly(t, test.TestKeys[0], test.TestValues[0])
	_, err := h.collector.Handoff(tx)
	require.Nil(t, err)

	_, err = h.collector.Handoff(tx)
	assert.IsType(t, common.InvalidTransactionStateError{}, err)
	assert.Equal(t, 1, h.mem.Len())
	h.mvcc.End(tx)
}

func TestHandoffOutOfCommitOrder(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	first := h.commitOnly(t, []byte("k"), []byte("first"))
	second := h.commitOnly(t, []byte("k"), []byte("second"))
	require.Less(t, first.CommitLSN(), second.CommitLSN())

	lsn, err := h.collector.Handoff(second)
	require.Nil(t, err)
	assert.Equal(t, second.CommitLSN(), lsn)
	_, err = h.collector.Handoff(first)
	require.Nil(t, err)

	val, err := h.mem.Get([]byte("k"), storage.NewSnapshot(h.seq.LSN()))
	assert.Nil(t, err)
	assert.Equal(t, []byte("second"), val, "the later commit must stay the newest version")

	val, err = h.mem.Get([]byte("k"), storage.NewSnapshot(first.CommitLSN()))
	assert.Nil(t, err)
	assert.Equal(t, []byte("first"), val)
	assert.Equal(t, 1, h.collector.Pending())

	h.mvcc.End(first)
	h.mvcc.End(second)
	assert.Equal(t, 0, h.collector.Collect(), "first is still visible at the watermark")

	h.commit(t, []byte("j"), []byte("other"))
	assert.Equal(t, 1, h.collector.Collect())
	assert.Equal(t, 2, h.mem.Len())

	val, err = h.mem.Get([]byte("k"), storage.NewSnapshot(h.seq.LSN()))
	assert.Nil(t, err)
	assert.Equal(t, []byte("second"), val, "collection must keep the newest version")
}

func TestConcurrentHandoffKeepsNewestVersion(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	const txns = 16
	var committed []*mvcc.Transaction
	for i := 0; i < txns; i++ {
		committed = append(committed, h.commitOnly(t, []byte("k"), []byte(fmt.Sprintf("value%d", i))))
	}

	var wg sync.WaitGroup
	for i := len(committed) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(tx *mvcc.Transaction) {
			defer wg.Done()
			_, err := h.collector.Handoff(tx)
			assert.Nil(t, err)
		}(committed[i])
	}
	wg.Wait()

	for _, tx := range committed {
		h.mvcc.End(tx)
	}
	h.commit(t, []byte("j"), []byte("other"))

	assert.Equal(t, txns-1, h.collector.Collect())
	assert.Equal(t, 0, h.collector.Pending())
	assert.Equal(t, 2, h.mem.Len())

	val, err := h.mem.Get([]byte("k"), storage.NewSnapshot(h.seq.LSN()))
	assert.Nil(t, err)
	assert.Equal(t, []byte(fmt.Sprintf("value%d", txns-1)), val)
}

func TestCollectorRestartsAfterContextDone(t *testing.T) {
	h := newCollectorTestHarness()
	defer h.mvcc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	h.collector.Start(ctx, time.Millisecond)
	cancel()

	assert.Eventually(t, func() bool {
		return !h.collector.running.Get()
	}, time.Second, time.Millisecond)

	h.collector.Start(context.Background(), time.Millisecond)
	assert.True(t, h.collector.running.Get())
	h.collector.Stop()
	assert.False(t, h.collector.running.Get())
}
