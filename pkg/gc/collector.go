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
	"time"

	"github.com/dr0pdb/icecanemvcc/internal/common"
	pcommon "github.com/dr0pdb/icecanemvcc/pkg/common"
	"github.com/dr0pdb/icecanemvcc/pkg/mvcc"
	"github.com/dr0pdb/icecanemvcc/pkg/storage"
	"github.com/emirpasic/gods/queues/priorityqueue"
	log "github.com/sirupsen/logrus"
)

// Watermarker reports the oldest sequence number still visible to a live txn.
// mvcc.MVCC implements it.
type Watermarker interface {
	LowWaterMark() uint64
}

// committed is the latest committed version of a key.
type committed struct {
	lsn  uint64
	size int
}

// obsoleteVersion is a committed version that stops being visible to snapshots
// taken at or after obsoletedAt.
type obsoleteVersion struct {
	key         []byte
	lsn         uint64
	size        int
	obsoletedAt uint64

	// self marks a tombstone scheduled for its own removal.
	// It only applies while the tombstone is still the latest version of the key.
	self bool
}

// byObsoletedAt orders the queue by obsoletedAt. Tombstones go after the
// versions they hide.
func byObsoletedAt(a, b interface{}) int {
	x, y := a.(*obsoleteVersion), b.(*obsoleteVersion)
	switch {
	case x.obsoletedAt < y.obsoletedAt:
		return -1
	case x.obsoletedAt > y.obsoletedAt:
		return 1
	case x.self == y.self:
		return 0
	case y.self:
		return -1
	default:
		return 1
	}
}

// Collector moves committed versions from the MVCC engine into the memtable
// and reclaims the ones no live txn can observe anymore.
//
// It is thread safe.
type Collector struct {
	conf  *pcommon.EngineConfig
	wm    Watermarker
	mem   *storage.Memtable
	alloc storage.Allocator

	mu       sync.Mutex
	latest   map[string]committed
	obsolete *priorityqueue.Queue

	// running indicates if the background loop is running or not.
	running pcommon.ProtectedBool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Handoff writes the versions of a committed txn into the memtable under the
// commit LSN of the txn. The collector takes ownership of the versions.
// Txns may be handed off in any order but before they end: a live txn holds
// the watermark below its commit LSN. returns the commit LSN.
func (c *Collector) Handoff(tx *mvcc.Transaction) (uint64, error) {
	if tx.State() != mvcc.Commit {
		return 0, common.NewInvalidTransactionStateError(fmt.Sprintf("txn %d can't be handed off in state %s", tx.ID(), tx.State()))
	}
	if tx.Detached() {
		return 0, common.NewInvalidTransactionStateError(fmt.Sprintf("txn %d already handed off", tx.ID()))
	}
	versions := tx.Detach()
	lsn := tx.CommitLSN()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range versions {
		if v.IsDeleted() {
			c.mem.Delete(v.Key, lsn)
		} else {
			c.mem.Set(v.Key, v.Value, lsn)
		}
		c.track(v.Key, lsn, v.Size(), v.IsDeleted())
	}

	c.trace(log.Fields{"txnId": tx.ID(), "lsn": lsn, "versions": len(versions)}, "gc::collector::Handoff; done")
	return lsn, nil
}

// track requires c.mu.
func (c *Collector) track(key []byte, lsn uint64, size int, tombstone bool) {
	prev, ok := c.latest[string(key)]
	if ok && prev.lsn > lsn {
		// a newer commit of the key was handed off first. Both this version and
		// the one it hid stop being visible at the newer LSN.
		c.obsolete.Enqueue(&obsoleteVersion{
			key:         key,
			lsn:         lsn,
			size:        size,
			obsoletedAt: prev.lsn,
		})
		return
	}

	if ok {
		c.obsolete.Enqueue(&obsoleteVersion{
			key:         key,
			lsn:         prev.lsn,
			size:        prev.size,
			obsoletedAt: lsn,
		})
	}
	c.latest[string(key)] = committed{lsn: lsn, size: size}

	if tombstone {
		c.obsolete.Enqueue(&obsoleteVersion{
			key:         key,
			lsn:         lsn,
			size:        size,
			obsoletedAt: lsn,
			self:        true,
		})
	}
}

// Collect removes from the memtable every version obsoleted at or below the
// current low water mark. returns the number of versions reclaimed.
func (c *Collector) Collect() int {
	lwm := c.wm.LowWaterMark()

	c.mu.Lock()
	defer c.mu.Unlock()

	reclaimed := 0
	for {
		top, ok := c.obsolete.Peek()
		if !ok {
			break
		}
		ov := top.(*obsoleteVersion)
		if ov.obsoletedAt > lwm {
			break
		}
		c.obsolete.Dequeue()

		if ov.self {
			cur, ok := c.latest[string(ov.key)]
			if !ok || cur.lsn != ov.lsn {
				continue
			}
			delete(c.latest, string(ov.key))
		}

		if c.mem.Remove(ov.key, ov.lsn) {
			c.alloc.Free(ov.size)
			reclaimed++
		}
	}

	if reclaimed > 0 {
		c.trace(log.Fields{"watermark": lwm, "reclaimed": reclaimed, "pending": c.obsolete.Size()}, "gc::collector::Collect; done")
	}
	return reclaimed
}

// Pending returns the number of versions waiting for the watermark to pass them.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.obsolete.Size()
}

// Start runs Collect every interval until ctx is cancelled or Stop is called.
// A collector whose context was cancelled can be started again.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	if !c.running.CompareAndSet(false, true) {
		log.Warn("gc::collector::Start; collector already running")
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	log.WithFields(log.Fields{"interval": interval}).Info("gc::collector::Start; started")
	go c.run(ctx, interval, c.stopCh, c.doneCh)
}

func (c *Collector) run(ctx context.Context, interval time.Duration, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.Collect()
		case <-stopCh:
			return
		case <-ctx.Done():
			log.Info("gc::collector::run; context done")
			c.running.Set(false)
			return
		}
	}
}

// Stop stops the background loop and waits for it to exit.
func (c *Collector) Stop() {
	if !c.running.CompareAndSet(true, false) {
		return
	}
	close(c.stopCh)
	<-c.doneCh
	log.Info("gc::collector::Stop; stopped")
}

func (c *Collector) trace(fields log.Fields, msg string) {
	if c.conf.LogGC {
		log.WithFields(fields).Debug(msg)
	}
}

// NewCollector creates a new collector.
func NewCollector(conf *pcommon.EngineConfig, wm Watermarker, mem *storage.Memtable, alloc storage.Allocator) *Collector {
	return &Collector{
		conf:     conf,
		wm:       wm,
		mem:      mem,
		alloc:    alloc,
		latest:   make(map[string]committed),
		obsolete: priorityqueue.NewWith(byObsoletedAt),
	}
}
