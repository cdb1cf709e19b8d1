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
	"github.com/dr0pdb/icecanemvcc/pkg/storage"
	"github.com/google/btree"
)

const indexDegree = 32

// versionIndex maps every key with an unresolved writer to the head of its
// version chain. The head is always the newest version of the chain.
//
// It is not thread safe. The engine lock guards it.
type versionIndex struct {
	tree *btree.BTreeG[*Version]
}

func newVersionIndex(cmp storage.Comparator) *versionIndex {
	return &versionIndex{
		tree: btree.NewG[*Version](indexDegree, func(a, b *Version) bool {
			return cmp.Compare(a.Key, b.Key) < 0
		}),
	}
}

// get returns the chain head for key or nil.
func (i *versionIndex) get(key []byte) *Version {
	head, found := i.tree.Get(&Version{Key: key})
	if !found {
		return nil
	}
	return head
}

// set makes head the indexed version of its key, inserting the key if needed.
func (i *versionIndex) set(head *Version) {
	i.tree.ReplaceOrInsert(head)
}

// remove drops the key from the index.
func (i *versionIndex) remove(key []byte) {
	i.tree.Delete(&Version{Key: key})
}

func (i *versionIndex) len() int {
	return i.tree.Len()
}

// ascend calls fn on every chain head in key order until fn returns false.
func (i *versionIndex) ascend(fn func(head *Version) bool) {
	i.tree.Ascend(func(head *Version) bool {
		return fn(head)
	})
}

func (i *versionIndex) clear() {
	i.tree.Clear(false)
}
