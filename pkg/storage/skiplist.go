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
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// defaultMaxLevel is the default max level of the skip list
	defaultMaxLevel int32 = 12

	// maxAllowedLevel bounds the height a caller can ask for.
	maxAllowedLevel int32 = 18

	defaultProbability float64 = 0.5
)

// skipList is the probabilistic data structure used in memtable.
// It supports byte key and values along with custom comparators.
//
// It can be accessed concurrently.
type skipList struct {
	mutex       sync.RWMutex
	head        *skipListNode
	maxLevel    int32
	comparator  Comparator
	probability float64
	rnd         *rand.Rand
	length      int
}

// get finds an element by key.
//
// returns a pointer to the skip list node if the key is found.
// returns nil in case the node with key is not found.
func (s *skipList) get(key []byte) *skipListNode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	next := s.findGreaterOrEqual(key, nil)
	if next != nil && s.comparator.Compare(next.getKey(), key) == 0 {
		return next
	}

	log.WithFields(log.Fields{
		"key": string(key),
	}).Debug("storage::skiplist::get; node not found")

	return nil
}

// set inserts a value in the list associated with the specified key.
//
// Overwrites the data if the key already exists.
// returns a pointer to the inserted/modified skip list node.
func (s *skipList) set(key, value []byte) *skipListNode {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prevs := make([]*skipListNode, s.maxLevel)
	element := s.findGreaterOrEqual(key, prevs)

	if element != nil && s.comparator.Compare(element.getKey(), key) == 0 {
		log.WithFields(log.Fields{
			"key": string(key),
		}).Debug("storage::skiplist::set; found an existing key, overriding the existing value")

		element.value = value
		return element
	}

	element = &skipListNode{
		key:   key,
		value: value,
		next:  make([]*skipListNode, s.randomLevel()),
	}

	for i := range element.next {
		element.next[i] = prevs[i].next[i]
		prevs[i].next[i] = element
	}
	s.length++

	return element
}

// delete deletes a value in the list associated with the specified key.
//
// returns a pointer to the removed skip list node.
// returns nil if the node isn't found.
func (s *skipList) delete(key []byte) *skipListNode {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prevs := make([]*skipListNode, s.maxLevel)
	element := s.findGreaterOrEqual(key, prevs)

	if element == nil || s.comparator.Compare(element.getKey(), key) != 0 {
		log.WithFields(log.Fields{
			"key": string(key),
		}).Debug("storage::skiplist::delete; key not found")

		return nil
	}

	for k, v := range element.next {
		prevs[k].next[k] = v
	}
	s.length--

	return element
}

// len returns the number of nodes in the list.
func (s *skipList) len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.length
}

// front returns the first node of the skip list.
func (s *skipList) front() *skipListNode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.head.next[0]
}

// getEqualOrGreater returns the first node whose key is >= key.
// obtains a read lock on the skip list internally.
// return nil if no such node exists.
func (s *skipList) getEqualOrGreater(key []byte) *skipListNode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.findGreaterOrEqual(key, nil)
}

// nextOf returns the successor of n on the bottom level.
func (s *skipList) nextOf(n *skipListNode) *skipListNode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return n.next[0]
}

// findGreaterOrEqual returns the first node whose key is >= key.
// When prevs is not nil it is filled with the rightmost node before key on each level.
// requires the lock to be held.
func (s *skipList) findGreaterOrEqual(key []byte, prevs []*skipListNode) *skipListNode {
	var next *skipListNode
	prev := s.head

	for i := s.maxLevel - 1; i >= 0; i-- {
		next = prev.next[i]

		// while the user key is bigger than next.Key()
		for next != nil && s.comparator.Compare(key, next.getKey()) > 0 {
			prev = next
			next = next.next[i]
		}

		if prevs != nil {
			prevs[i] = prev
		}
	}

	return next
}

// randomLevel returns a level in [1, maxLevel]. requires the write lock.
func (s *skipList) randomLevel() int32 {
	level := int32(1)
	for level < s.maxLevel && s.rnd.Float64() < s.probability {
		level++
	}
	return level
}

// newSkipListIterator returns a new skip list iterator on the skip list.
func (s *skipList) newSkipListIterator() *skipListIterator {
	return &skipListIterator{
		skipList: s,
		node:     nil,
	}
}

type skipListNode struct {
	key   []byte
	value []byte
	next  []*skipListNode
}

func (sn *skipListNode) getKey() []byte {
	return sn.key
}

func (sn *skipListNode) getValue() []byte {
	return sn.value
}

// skipListIterator is the iterator over the key-value pairs of the skip list.
// It relies on the internal synchronization of the skiplist.
// Multiple threads can access different iterators
// but two threads accessing the same iterator requires external synchronization.
type skipListIterator struct {
	skipList *skipList
	node     *skipListNode
}

var _ Iterator = (*skipListIterator)(nil)

// Checks if the current position of the iterator is valid.
func (sli *skipListIterator) Valid() bool {
	return sli.node != nil
}

// Move to the first entry of the skiplist.
// Call Valid() to ensure that the iterator is valid after the seek.
func (sli *skipListIterator) SeekToFirst() {
	sli.node = sli.skipList.front()
}

// Seek the iterator to the first element whose key is >= target
// Call Valid() to ensure that the iterator is valid after the seek.
func (sli *skipListIterator) Seek(target []byte) {
	sli.node = sli.skipList.getEqualOrGreater(target)
}

// Moves to the next key-value pair in the skiplist.
// Call valid() to ensure that the iterator is valid.
// REQUIRES: Current position of iterator is valid. Panic otherwise.
func (sli *skipListIterator) Next() {
	if !sli.Valid() {
		panic("Next on an invalid iterator position in skiplist.")
	}
	sli.node = sli.skipList.nextOf(sli.node)
}

// Get the key of the current iterator position.
// REQUIRES: Current position of iterator is valid. Panics otherwise.
func (sli *skipListIterator) Key() []byte {
	if !sli.Valid() {
		panic("Key on an invalid iterator position in skiplist.")
	}
	return sli.node.getKey()
}

// Get the value of the current iterator position.
// REQUIRES: Current position of iterator is valid. Panics otherwise.
func (sli *skipListIterator) Value() []byte {
	if !sli.Valid() {
		panic("Value on an invalid iterator position in skiplist.")
	}
	return sli.node.getValue()
}

// newSkipList creates a new skipList
//
// Passing 0 for maxLevel leads to a default max level.
func newSkipList(maxLevel int32, comparator Comparator) *skipList {
	if maxLevel == 0 {
		maxLevel = defaultMaxLevel
	}

	if maxLevel < 1 || maxLevel > maxAllowedLevel {
		panic("maxLevel for the SkipList must be a positive integer <= 18")
	}

	return &skipList{
		head:        &skipListNode{next: make([]*skipListNode, maxLevel)},
		maxLevel:    maxLevel,
		comparator:  comparator,
		probability: defaultProbability,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}
