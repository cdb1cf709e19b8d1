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

package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProtectedBoolCompareAndSet(t *testing.T) {
	var b ProtectedBool
	assert.True(t, b.CompareAndSet(false, true))
	assert.True(t, b.Get())
	assert.False(t, b.CompareAndSet(false, true), "second swap from false should fail")

	b.Set(false)
	assert.False(t, b.Get())
}

func TestDefaultConfigIsValid(t *testing.T) {
	conf := NewDefaultEngineConfig()
	assert.Nil(t, conf.Validate())
}

func TestConfigValidate(t *testing.T) {
	conf := NewDefaultEngineConfig()
	conf.LogLevel = "loud"
	assert.NotNil(t, conf.Validate(), "expected invalid log level to fail validation")

	conf = NewDefaultEngineConfig()
	conf.GCInterval = 0
	assert.NotNil(t, conf.Validate(), "expected zero gc interval to fail validation")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	data := []byte("logLevel: debug\nmemoryLimit: 4096\ngcInterval: 2s\nlogGC: true\n")
	assert.Nil(t, os.WriteFile(path, data, 0644))

	conf := NewDefaultEngineConfig()
	err := conf.LoadFromFile(path)
	assert.Nil(t, err)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, int64(4096), conf.MemoryLimit)
	assert.Equal(t, 2*time.Second, conf.GCInterval)
	assert.True(t, conf.LogGC)
	assert.False(t, conf.LogMVCC)
	assert.Nil(t, conf.SetupLogging())
}

func TestLoadFromFileMissing(t *testing.T) {
	conf := NewDefaultEngineConfig()
	err := conf.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
	assert.Equal(t, NewDefaultEngineConfig(), conf, "config should be untouched on error")
}
