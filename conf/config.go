// Copyright 2026 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

// Package conf loads environment-open settings (map size, reader/DB
// limits, on-disk flags) from a pair of JSON files: a base config and an
// optional local override merged on top of it.
package conf

import (
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/mendersoftware/log"
	"github.com/pkg/errors"

	"github.com/northerntech/lmdbkv/kv"
)

// EnvConfigFromFile is the JSON-serializable subset of EnvConfig.
type EnvConfigFromFile struct {
	// Path to the directory (sub-directory mode) or file (NoSubdir mode)
	// the environment opens.
	Path string

	// Bytes reserved in the memory mapping.
	MapSize int64
	// Upper bound on concurrently open named Dbis.
	MaxDbs int
	// Reader-lock-table slot count.
	MaxReaders int
	// POSIX mode applied to newly created environment files.
	FilePermissions uint32

	// Names of EnvFlag bits to pass to Open, e.g. "NoSubdir", "NoSync".
	// See flagsByName for the recognized set.
	EnvFlags []string
}

// EnvConfig is the configuration loaded for one environment, plus defaults
// filled in by NewEnvConfig.
type EnvConfig struct {
	EnvConfigFromFile
}

// NewEnvConfig returns a config carrying the package defaults, before any
// file is merged in.
func NewEnvConfig() *EnvConfig {
	return &EnvConfig{
		EnvConfigFromFile: EnvConfigFromFile{
			MapSize:         kv.DefaultMapSize,
			MaxDbs:          kv.DefaultMaxDbs,
			MaxReaders:      kv.DefaultMaxReaders,
			FilePermissions: uint32(kv.DefaultFilePermissions),
		},
	}
}

// flagsByName maps the JSON config's EnvFlags string names to kv.EnvFlag
// bits. Kept private and explicit rather than reflection-based, so an
// unrecognized name in a config file is a loud error instead of a silently
// ignored flag.
var flagsByName = map[string]kv.EnvFlag{
	"FixedMap":    kv.FixedMap,
	"NoSubdir":    kv.NoSubdir,
	"ReadOnly":    kv.ReadOnly,
	"WriteMap":    kv.WriteMap,
	"NoMetaSync":  kv.NoMetaSync,
	"NoSync":      kv.NoSync,
	"MapAsync":    kv.MapAsync,
	"NoTLS":       kv.NoTLS,
	"NoLock":      kv.NoLock,
	"NoReadahead": kv.NoReadahead,
	"NoMemInit":   kv.NoMemInit,
}

// ResolveEnvFlags converts the config's EnvFlags name list into a FlagSet
// suitable for Builder.Open, failing loudly on an unrecognized name.
func (c *EnvConfig) ResolveEnvFlags() (kv.FlagSet, error) {
	b := kv.NewEnvFlags()
	for _, name := range c.EnvFlags {
		flag, ok := flagsByName[name]
		if !ok {
			return kv.EmptyFlags, errors.Errorf("conf: unrecognized EnvFlag %q", name)
		}
		b.Add(flag)
	}
	return b.Build(), nil
}

// LoadConfig parses a base configuration file and a local override file.
// It is OK if either file does not exist, so long as at least one does, or
// the caller is happy running on package defaults alone. The override
// file's values win over the base file's for any option present in both.
func LoadConfig(mainConfigFile, fallbackConfigFile string) (*EnvConfig, error) {
	log.Info("conf: loading configuration")

	var filesLoadedCount int
	config := NewEnvConfig()

	if err := loadConfigFile(fallbackConfigFile, config, &filesLoadedCount); err != nil {
		return nil, err
	}
	if err := loadConfigFile(mainConfigFile, config, &filesLoadedCount); err != nil {
		return nil, err
	}

	if filesLoadedCount == 0 {
		log.Info("conf: no configuration files present, using defaults")
		return config, nil
	}

	if config.MapSize <= 0 {
		return nil, errors.New("conf: MapSize must be positive")
	}
	if config.MaxDbs <= 0 {
		return nil, errors.New("conf: MaxDbs must be positive")
	}

	log.Debugf("conf: merged configuration = %#v", config)
	return config, nil
}

func loadConfigFile(configFile string, config *EnvConfig, filesLoadedCount *int) error {
	if configFile == "" {
		return nil
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Debug("conf: configuration file does not exist: ", configFile)
		return nil
	}

	if err := readConfigFile(&config.EnvConfigFromFile, configFile); err != nil {
		log.Errorf("conf: error loading configuration from file: %s (%s)", configFile, err)
		return err
	}

	(*filesLoadedCount)++
	log.Info("conf: loaded configuration file: ", configFile)
	return nil
}

func readConfigFile(config interface{}, fileName string) error {
	log.Debug("conf: reading configuration from file " + fileName)
	raw, err := ioutil.ReadFile(fileName)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, config); err != nil {
		if _, ok := err.(*json.SyntaxError); ok {
			return errors.New("conf: error parsing configuration file: " + err.Error())
		}
		return errors.New("conf: error parsing configuration file: " + err.Error())
	}
	return nil
}

// SaveConfigFile writes config to filename as indented JSON.
func SaveConfigFile(config *EnvConfigFromFile, filename string) error {
	raw, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return errors.Wrap(err, "conf: error encoding configuration to JSON")
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "conf: error opening configuration file")
	}
	defer f.Close()

	if _, err := f.Write(raw); err != nil {
		return errors.Wrap(err, "conf: error writing configuration file")
	}
	return nil
}
