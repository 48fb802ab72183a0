// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/lillib/avrterm/cmd/avrterm/directory"
	"github.com/spf13/cobra"
)

// Older avrdude releases do not know the arduino programmer well enough to
// talk to optiboot reliably.
var minAvrdudeVersion = version.Must(version.NewVersion("6.0"))

var avrdudeVersionRe = regexp.MustCompile(`avrdude version ([0-9]+(\.[0-9]+)*)`)

func VersionCmd(info Info) *cobra.Command {
	settings := ConfiguredSettings()
	cmd := &cobra.Command{
		Use:          "version",
		Short:        "Print the version of avrterm and of the avrdude it runs",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("avrterm version:\t%s\n", info.Version)
			fmt.Printf("Build date:\t\t%s\n", info.Date)

			avrdude := directory.GetAvrdudePath(settings.Avrdude.Path)
			v, err := avrdudeVersion(avrdude)
			if err != nil {
				fmt.Printf("avrdude version:\tunknown (%v)\n", err)
				return
			}
			fmt.Printf("avrdude version:\t%s\n", v)
			if v.LessThan(minAvrdudeVersion) {
				failure.Printf("avrdude %s is older than %s, flashing may fail\n", v, minAvrdudeVersion)
			}
		},
	}
	return cmd
}

func avrdudeVersion(path string) (*version.Version, error) {
	// avrdude prints its version as part of the usage, with a nonzero exit.
	out, err := exec.Command(path, "-?").CombinedOutput()
	if len(out) == 0 && err != nil {
		return nil, err
	}
	return parseAvrdudeVersion(string(out))
}

func parseAvrdudeVersion(out string) (*version.Version, error) {
	m := avrdudeVersionRe.FindStringSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("no version in avrdude output '%s'", firstLine(out))
	}
	return version.NewVersion(m[1])
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
