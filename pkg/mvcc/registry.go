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
	"sync"

	"github.com/google/btree"
	log "github.com/sirupsen/logrus"
)

const registryDegree = 16

// txRegistry is the ordered set of live transactions.
// A single mutex guards the tree and the live count.
type txRegistry struct {
	mu    sync.Mutex
	tree  *btree.BTreeG[*Transaction]
	count int
}

func newTxRegistry() *txRegistry {
	return &txRegistry{
		tree: btree.NewG[*Transaction](registryDegree, func(a, b *Transaction) bool {
			return a.id < b.id
		}),
	}
}

// register adds tx. A duplicate id means the sequence service is broken.
func (r *txRegistry) register(tx *Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.tree.Get(tx); found {
		log.Panicf("mvcc::registry::register; duplicate transaction id %d", tx.id)
	}
	r.tree.ReplaceOrInsert(tx)
	r.count++
}

func (r *txRegistry) deregister(tx *Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.tree.Delete(tx); !found {
		log.Panicf("mvcc::registry::deregister; transaction %d is not registered", tx.id)
	}
	r.count--
}

// minSnapshotBound returns the snapshot bound of the oldest live transaction.
// With no live transaction nothing is held back and the bound follows the sequence.
func (r *txRegistry) minSnapshotBound(seq Sequencer) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count > 0 {
		min, _ := r.tree.Min()
		return min.snapshotBound
	}
	return boundOf(seq.LSN())
}

func (r *txRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// drain removes and returns every registered transaction in id order.
func (r *txRegistry) drain() []*Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	txns := make([]*Transaction, 0, r.count)
	r.tree.Ascend(func(tx *Transaction) bool {
		txns = append(txns, tx)
		return true
	})
	r.tree.Clear(false)
	r.count = 0
	return txns
}

// boundOf converts a sequence value into a snapshot bound.
func boundOf(lsn uint64) uint64 {
	if lsn == 0 {
		return 0
	}
	return lsn - 1
}
