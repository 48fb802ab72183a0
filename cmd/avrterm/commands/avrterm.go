// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type Info struct {
	Version string `mapstructure:"version" yaml:"version" json:"version"`
	Date    string `mapstructure:"date" yaml:"date" json:"date"`
}

// bootloader flashes a device and then attaches the console to it.
type bootloader struct {
	flash   func(ctx context.Context, port string) (int, error)
	console func(ctx context.Context, port string) error
	sleep   func(ctx context.Context, d time.Duration) error
	settle  time.Duration
	out     io.Writer
}

func (b *bootloader) Run(ctx context.Context, port string) error {
	status, err := b.flash(ctx, port)
	if err := reportFlash(b.out, status, err); err != nil {
		if errors.Is(err, ErrFlashFailed) {
			fmt.Fprintln(b.out, "Done")
		}
		return err
	}

	if err := b.sleep(ctx, b.settle); err != nil {
		return nil
	}
	if err := b.console(ctx, port); err != nil {
		return err
	}
	fmt.Fprintln(b.out, "Done")
	return nil
}

func AvrtermCmd(info Info) *cobra.Command {
	settings := ConfiguredSettings()
	cmd := &cobra.Command{
		Use:   "avrterm [port]",
		Short: "Flash an AVR and talk to its serial console",
		Long: "avrterm flashes the firmware image to an AVR microcontroller with avrdude\n" +
			"and then attaches the terminal to the serial console of the freshly\n" +
			"flashed firmware, over the same serial port.\n\n" +
			"The console session ends when the device sends EOT (0x04) or when\n" +
			"Ctrl-C is pressed.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// glog complains unless the standard flag set counts as parsed.
			flag.CommandLine.Parse(nil)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := resolvePort(args, settings.Port)
			if err != nil {
				return err
			}

			programmer, err := programmerFromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			con, settle, err := consoleFromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			fmt.Printf("Flashing '%s' over serial on port '%s' ...\n", programmer.Image, port)
			b := &bootloader{
				flash:   programmer.Flash,
				console: con.Run,
				sleep:   sleepContext,
				settle:  settle,
				out:     stdout,
			}
			return b.Run(cmd.Context(), port)
		},
	}

	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	addFlashFlags(cmd, settings)
	addConsoleFlags(cmd, settings)

	cmd.AddCommand(
		FlashCmd(),
		ConsoleCmd(),
		WatchCmd(),
		PortsCmd(),
		SetPortCmd(),
		ConfigCmd(),
		VersionCmd(info),
	)
	return cmd
}
