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

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dr0pdb/icecanemvcc/pkg/common"
	"github.com/dr0pdb/icecanemvcc/pkg/gc"
	"github.com/dr0pdb/icecanemvcc/pkg/mvcc"
	"github.com/dr0pdb/icecanemvcc/pkg/storage"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

var (
	configPath = flag.String("config", "", "path of the yaml config file")
	logLevel   = flag.String("loglevel", "", "the level of log")
	memLimit   = flag.Int64("memlimit", 0, "memory limit in MB, overrides the config")
	writers    = flag.Int("writers", 8, "number of concurrent writers")
	txns       = flag.Int("txns", 1000, "number of transactions per writer")
	keys       = flag.Int("keys", 64, "size of the key space")
	writesPer  = flag.Int("writes", 4, "number of writes per transaction")
	maxWaits   = flag.Int("maxwaits", 100, "number of prepare retries before giving up on a txn")
)

type stats struct {
	commits   atomic.Int64
	rollbacks atomic.Int64
	waits     atomic.Int64
	failures  atomic.Int64
}

func main() {
	flag.Parse()
	conf := common.NewDefaultEngineConfig()

	if *configPath != "" {
		if err := conf.LoadFromFile(*configPath); err != nil {
			log.Fatalf("%v", err)
		}
	}
	if *logLevel != "" {
		conf.LogLevel = *logLevel
	}
	if *memLimit > 0 {
		conf.MemoryLimit = *memLimit * common.MB
	}

	err := conf.Validate()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err = conf.SetupLogging(); err != nil {
		log.Fatalf("%v", err)
	}

	seq := storage.NewSequence(0, 1)
	alloc := storage.NewAllocator(conf.MemoryLimit)
	mem := storage.NewMemtable(nil)
	engine := mvcc.NewMVCC(conf, seq, storage.DefaultComparator, alloc)
	collector := gc.NewCollector(conf, engine, mem, alloc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector.Start(ctx, conf.GCInterval)

	st := &stats{}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < *writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWriter(id, engine, collector, st)
		}(i)
	}
	wg.Wait()

	collector.Stop()
	reclaimed := collector.Collect()

	live := 0
	snapshot := seq.GetSnapshot()
	for k := 0; k < *keys; k++ {
		if _, err := mem.Get([]byte(fmt.Sprintf("key%04d", k)), snapshot); err == nil {
			live++
		}
	}

	log.WithFields(log.Fields{
		"elapsed":   time.Since(start),
		"commits":   st.commits.Load(),
		"rollbacks": st.rollbacks.Load(),
		"waits":     st.waits.Load(),
		"failures":  st.failures.Load(),
		"versions":  mem.Len(),
		"liveKeys":  live,
		"reclaimed": reclaimed,
		"inUse":     alloc.InUse(),
	}).Info("icecanemvcc::main; workload done")

	if err = engine.Close(); err != nil {
		log.Fatalf("%v", err)
	}
}

func runWriter(id int, engine *mvcc.MVCC, collector *gc.Collector, st *stats) {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	for n := 0; n < *txns; n++ {
		tx := engine.Begin()

		ok := true
		for w := 0; w < *writesPer && ok; w++ {
			key := []byte(fmt.Sprintf("key%04d", rnd.Intn(*keys)))
			var err error
			if rnd.Intn(10) == 0 {
				err = engine.Delete(tx, key)
			} else {
				err = engine.Put(tx, key, []byte(fmt.Sprintf("writer%d-txn%d", id, n)))
			}
			if err != nil {
				log.WithFields(log.Fields{"writer": id, "txnId": tx.ID()}).Warn(fmt.Sprintf("icecanemvcc::main::runWriter; write failed, err: %v", err))
				st.failures.Inc()
				ok = false
			}
		}

		if !ok {
			engine.Rollback(tx)
			engine.End(tx)
			continue
		}

		// writers crossing each other on two keys wait on each other forever,
		// giving up after maxWaits retries breaks the cycle.
		rc := engine.Prepare(tx, nil)
		for retries := 0; rc == mvcc.Wait && retries < *maxWaits; retries++ {
			st.waits.Inc()
			time.Sleep(time.Microsecond * time.Duration(1+rnd.Intn(50)))
			rc = engine.Prepare(tx, nil)
		}

		if rc == mvcc.Prepare {
			engine.Commit(tx)
			if _, err := collector.Handoff(tx); err != nil {
				log.Fatalf("%v", err)
			}
			st.commits.Inc()
		} else {
			engine.Rollback(tx)
			st.rollbacks.Inc()
		}
		engine.End(tx)
	}
}
