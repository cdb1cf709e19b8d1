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
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	// MB - Megabytes
	MB int64 = 1024 * 1024
)

const (
	defaultLogLevel   = "info"
	defaultGCInterval = 100 * time.Millisecond
)

// EngineConfig defines the configuration settings for the MVCC engine
// and the collaborators wired around it.
type EngineConfig struct {
	LogLevel string `yaml:"logLevel"`

	// MemoryLimit caps the bytes held by in-flight versions, log slots and
	// committed versions awaiting collection. Zero or negative means unlimited.
	MemoryLimit int64 `yaml:"memoryLimit"`

	// GCInterval is the period of the background collector.
	GCInterval time.Duration `yaml:"gcInterval"`

	// Logging config
	LogMVCC bool `yaml:"logMVCC"`
	LogGC   bool `yaml:"logGC"`
}

// NewDefaultEngineConfig returns a new default engine configuration.
func NewDefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		LogLevel:   defaultLogLevel,
		GCInterval: defaultGCInterval,
	}
}

// Validate validates an EngineConfig and returns an error if it's invalid.
func (conf *EngineConfig) Validate() error {
	if _, err := log.ParseLevel(conf.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q provided in config", conf.LogLevel)
	}
	if conf.GCInterval <= 0 {
		return fmt.Errorf("invalid gc interval provided in config")
	}
	return nil
}

// LoadFromFile loads the config from the file. It assumes that config already has the defaults.
// In the case of an error, it leaves the config untouched.
func (conf *EngineConfig) LoadFromFile(path string) error {
	log.Info(fmt.Sprintf("common::config::LoadFromFile; loading config from file %s", path))
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error(fmt.Sprintf("common::config::LoadFromFile; error reading config from file %s, error %s", path, err))
		return errors.Wrapf(err, "reading config file %s", path)
	}
	fconf := EngineConfig{}
	err = yaml.Unmarshal(data, &fconf)
	if err != nil {
		log.Error(fmt.Sprintf("common::config::LoadFromFile; error unmarshalling config from file %s, error %s", path, err))
		return errors.Wrapf(err, "decoding config file %s", path)
	}

	log.WithFields(log.Fields{"config": fconf}).Debug("common::config::LoadFromFile; read contents from the file")

	// populate fields
	if fconf.LogLevel != "" {
		conf.LogLevel = fconf.LogLevel
	}
	if fconf.MemoryLimit != 0 {
		conf.MemoryLimit = fconf.MemoryLimit
	}
	if fconf.GCInterval != 0 {
		conf.GCInterval = fconf.GCInterval
	}
	if fconf.LogMVCC {
		conf.LogMVCC = true
	}
	if fconf.LogGC {
		conf.LogGC = true
	}
	return nil
}

// SetupLogging applies the configured log level to the global logger.
func (conf *EngineConfig) SetupLogging() error {
	level, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return errors.Wrapf(err, "parsing log level %q", conf.LogLevel)
	}
	log.SetLevel(level)
	return nil
}
