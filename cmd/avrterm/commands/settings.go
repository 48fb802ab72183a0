// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/lillib/avrterm/cmd/avrterm/directory"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	PortCfgKey = "port"
)

type Settings struct {
	Port    string          `mapstructure:"port" yaml:"port" json:"port"`
	Avrdude AvrdudeSettings `mapstructure:"avrdude" yaml:"avrdude" json:"avrdude"`
	Console ConsoleSettings `mapstructure:"console" yaml:"console" json:"console"`
}

type AvrdudeSettings struct {
	Path       string `mapstructure:"path" yaml:"path" json:"path"`
	Part       string `mapstructure:"part" yaml:"part" json:"part"`
	Programmer string `mapstructure:"programmer" yaml:"programmer" json:"programmer"`
	Baud       uint   `mapstructure:"baud" yaml:"baud" json:"baud"`
	Image      string `mapstructure:"image" yaml:"image" json:"image"`
	Verbose    bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	NoErase    bool   `mapstructure:"no-erase" yaml:"no-erase" json:"no-erase"`
}

type ConsoleSettings struct {
	Baud        uint          `mapstructure:"baud" yaml:"baud" json:"baud"`
	Settle      time.Duration `mapstructure:"settle" yaml:"settle" json:"settle"`
	ReadTimeout time.Duration `mapstructure:"read-timeout" yaml:"read-timeout" json:"read-timeout"`
}

var defaultSettings = map[string]interface{}{
	PortCfgKey:             "",
	"avrdude.path":         "",
	"avrdude.part":         "m328p",
	"avrdude.programmer":   "arduino",
	"avrdude.baud":         57600,
	"avrdude.image":        "",
	"avrdude.verbose":      true,
	"avrdude.no-erase":     true,
	"console.baud":         115200,
	"console.settle":       "500ms",
	"console.read-timeout": "10ms",
}

// SettingKeys lists every key the user config understands.
func SettingKeys() []string {
	var keys []string
	for k := range defaultSettings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isSettingKey(key string) bool {
	_, ok := defaultSettings[key]
	return ok
}

// withDefaults layers cfg over the built-in defaults. The result must not be
// written back, or the defaults would be persisted too.
func withDefaults(cfg *viper.Viper) (*viper.Viper, error) {
	res := viper.New()
	for k, v := range defaultSettings {
		res.SetDefault(k, v)
	}
	if err := res.MergeConfigMap(cfg.AllSettings()); err != nil {
		return nil, err
	}
	return res, nil
}

func decodeSettings(cfg *viper.Viper) (*Settings, error) {
	merged, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}

	var res Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := merged.Unmarshal(&res, hook); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &res, nil
}

func GetSettings() (*Settings, error) {
	cfg, err := directory.GetUserConfig()
	if err != nil {
		return nil, err
	}
	return decodeSettings(cfg)
}

// ConfiguredSettings never fails; a broken config file falls back to the
// defaults so flag defaults can always be computed.
func ConfiguredSettings() *Settings {
	if s, err := GetSettings(); err == nil {
		return s
	}
	s, _ := decodeSettings(viper.New())
	return s
}
