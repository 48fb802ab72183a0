// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package directory

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const (
	// UserConfigPathEnv if set, will load the user config from that path.
	UserConfigPathEnv = "AVRTERM_USER_CONFIG_PATH"
	// AvrdudePathEnv if set, overrides the avrdude executable.
	AvrdudePathEnv = "AVRTERM_AVRDUDE"
	// ImagePathEnv if set, overrides the firmware image to flash.
	ImagePathEnv = "AVRTERM_IMAGE"

	// DefaultImagePath is where the build drops the application image.
	DefaultImagePath = "__builddir__/app.hex"
)

func GetUserConfigPath() (string, error) {
	if path, ok := os.LookupEnv(UserConfigPathEnv); ok {
		return path, nil
	}

	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, ".config", "avrterm", "config.yaml"), nil
}

func GetUserConfig() (*viper.Viper, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config path: %w", err)
	}

	cfg := viper.New()
	cfg.SetConfigType("yaml")
	cfg.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read user config: %w", err)
		}
	}
	return cfg, nil
}

func WriteConfig(cfg *viper.Viper) error {
	file := cfg.ConfigFileUsed()
	dir := filepath.Dir(file)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmpFile := filepath.Join(filepath.Dir(file), ".config.tmp.yaml")
	if err := cfg.WriteConfigAs(tmpFile); err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	return os.Rename(tmpFile, file)
}

// GetAvrdudePath returns the avrdude executable to run. The environment wins
// over the configured path, which wins over a PATH lookup.
func GetAvrdudePath(configured string) string {
	if path, ok := os.LookupEnv(AvrdudePathEnv); ok {
		return path
	}
	if configured != "" {
		return configured
	}
	return Executable("avrdude")
}

func GetImagePath(configured string) string {
	if path, ok := os.LookupEnv(ImagePathEnv); ok {
		return path
	}
	if configured != "" {
		return configured
	}
	return DefaultImagePath
}

func Executable(str string) string {
	if runtime.GOOS == "windows" {
		return str + ".exe"
	}
	return str
}
