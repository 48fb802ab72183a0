// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lillib/avrterm/cmd/avrterm/directory"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure avrterm",
		Long: "Configure the avrterm command line tool. The settings are used as the\n" +
			"defaults of the command line flags.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:          "show",
			Short:        "Print the effective configuration",
			Args:         cobra.NoArgs,
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := directory.GetUserConfig()
				if err != nil {
					return err
				}
				return showConfig(os.Stdout, cfg)
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a setting in the user configuration",
			Long: "Store a setting in the user configuration. Known keys:\n\n  " +
				strings.Join(SettingKeys(), "\n  "),
			Args:         cobra.ExactArgs(2),
			SilenceUsage: true,
			RunE: func(_ *cobra.Command, args []string) error {
				cfg, err := directory.GetUserConfig()
				if err != nil {
					return err
				}
				if err := setConfig(cfg, args[0], args[1]); err != nil {
					return err
				}
				return directory.WriteConfig(cfg)
			},
		},
	)
	return cmd
}

func showConfig(w io.Writer, cfg *viper.Viper) error {
	merged, err := withDefaults(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# %s\n", cfg.ConfigFileUsed())
	return yaml.NewEncoder(w).Encode(merged.AllSettings())
}

// setConfig stores value under key, refusing unknown keys and values the
// settings can't be decoded from.
func setConfig(cfg *viper.Viper, key string, value string) error {
	key = strings.ToLower(key)
	if !isSettingKey(key) {
		return fmt.Errorf("unknown setting '%s'. Known settings: %s", key, strings.Join(SettingKeys(), ", "))
	}

	previous := cfg.Get(key)
	cfg.Set(key, value)
	if _, err := decodeSettings(cfg); err != nil {
		cfg.Set(key, previous)
		return fmt.Errorf("invalid value '%s' for '%s': %w", value, key, err)
	}
	return nil
}
