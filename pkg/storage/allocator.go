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
	"github.com/dr0pdb/icecanemvcc/internal/common"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Allocator accounts for the memory held by versions and log slots.
//
// Go manages the memory itself; the allocator is the admission point that
// lets a bounded engine refuse work instead of growing without limit.
// Every successful Alloc must be paired with a Free of the same size.
type Allocator interface {
	// Alloc reserves size bytes. returns common.AllocationError if the request can't be served.
	Alloc(size int) error

	// Free releases size bytes reserved earlier.
	Free(size int)

	// InUse returns the number of bytes currently reserved.
	InUse() int64
}

// quotaAllocator is an Allocator with an optional upper bound.
type quotaAllocator struct {
	limit int64
	inUse *atomic.Int64
}

var _ Allocator = (*quotaAllocator)(nil)

func (q *quotaAllocator) Alloc(size int) error {
	if size < 0 {
		log.Panicf("storage::allocator::Alloc; negative size %d", size)
	}

	for {
		cur := q.inUse.Load()
		if q.limit > 0 && cur+int64(size) > q.limit {
			log.WithFields(log.Fields{
				"size":  size,
				"inUse": cur,
				"limit": q.limit,
			}).Debug("storage::allocator::Alloc; quota exceeded")

			return common.NewAllocationError("memory quota exceeded", size)
		}
		if q.inUse.CAS(cur, cur+int64(size)) {
			return nil
		}
	}
}

func (q *quotaAllocator) Free(size int) {
	if remaining := q.inUse.Sub(int64(size)); remaining < 0 {
		log.Panicf("storage::allocator::Free; released more than reserved, in use %d", remaining)
	}
}

func (q *quotaAllocator) InUse() int64 {
	return q.inUse.Load()
}

// NewAllocator creates an allocator bounded by limit bytes.
// A limit <= 0 means unlimited.
func NewAllocator(limit int64) Allocator {
	return &quotaAllocator{
		limit: limit,
		inUse: atomic.NewInt64(0),
	}
}
