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

// Options defines the configuration options available for the memtable.
type Options struct {
	// Comparator orders user keys.
	// nil means DefaultComparator.
	Comparator Comparator

	// MaxLevel is the height of the memtable skip list.
	// set to zero for defaultMaxLevel.
	MaxLevel int32
}

func (o *Options) comparator() Comparator {
	if o == nil || o.Comparator == nil {
		return DefaultComparator
	}
	return o.Comparator
}

func (o *Options) maxLevel() int32 {
	if o == nil {
		return 0
	}
	return o.MaxLevel
}
