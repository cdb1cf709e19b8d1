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
	"sync"
	"testing"

	"github.com/dr0pdb/icecanemvcc/test"
	"github.com/stretchr/testify/assert"
)

func TestSequenceCounters(t *testing.T) {
	s := NewSequence(0, 10)

	assert.Equal(t, uint64(1), s.NextTSN())
	assert.Equal(t, uint64(2), s.NextTSN())
	assert.Equal(t, uint64(2), s.TSN())

	assert.Equal(t, uint64(10), s.LSN())
	assert.Equal(t, uint64(11), s.NextLSN())
	assert.Equal(t, uint64(11), s.GetSnapshot().SeqNumber())
}

func TestSequenceConcurrentTSN(t *testing.T) {
	s := NewSequence(0, 0)
	wg := &sync.WaitGroup{}
	ids := make(chan uint64, 4000)

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				ids <- s.NextTSN()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate transaction id")
		seen[id] = true
	}
	assert.Equal(t, 4000, len(seen))
	assert.Equal(t, uint64(4000), s.TSN())
}

func TestComparatorFunc(t *testing.T) {
	c := NewComparator("reverse", test.ReverseCompare)
	assert.Equal(t, "reverse", c.Name())
	assert.Equal(t, 1, c.Compare([]byte("a"), []byte("b")))
	assert.Equal(t, -1, c.Compare([]byte("ab"), []byte("a")))
	assert.Equal(t, 0, DefaultComparator.Compare([]byte("a"), []byte("a")))
	assert.Equal(t, "BytewiseComparator", DefaultComparator.Name())
}
