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
	"bytes"
)

// Comparator defines a total ordering over the []byte key space.
// It is used by the version index of the MVCC engine as well as by the memtable.
type Comparator interface {
	// Compare returns -1, 0, 1 if a is less than, equal to or greater than b respectively.
	// empty slice is assumed to be less than any non-empty slice.
	Compare(a, b []byte) int

	// Name returns the name of the comparator
	//
	// The data is stored in the sorted order determined by a comparator.
	// Hence mixing structures built with different comparators will
	// produce inconsistent results.
	Name() string
}

// DefaultComparator is the default comparator which uses byte wise ordering.
var DefaultComparator Comparator = defaultComparator{}

type defaultComparator struct{}

func (d defaultComparator) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

func (d defaultComparator) Name() string {
	return "BytewiseComparator"
}

// funcComparator adapts a plain comparison function supplied by the caller.
type funcComparator struct {
	name string
	cmp  func(a, b []byte) int
}

func (f funcComparator) Compare(a, b []byte) int {
	return f.cmp(a, b)
}

func (f funcComparator) Name() string {
	return f.name
}

// NewComparator wraps a comparison function into a Comparator.
// cmp must define a total order.
func NewComparator(name string, cmp func(a, b []byte) int) Comparator {
	return funcComparator{
		name: name,
		cmp:  cmp,
	}
}
