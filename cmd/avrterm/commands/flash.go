// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/lillib/avrterm/cmd/avrterm/directory"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ErrFlashFailed is returned when avrdude exits with a nonzero status. The
// failure has already been reported to the operator when it is returned.
var ErrFlashFailed = errors.New("flashing failed")

var failure = color.New(color.FgRed, color.Bold)

// stdout understands the colour escapes on Windows consoles too.
var stdout = colorable.NewColorableStdout()

// Programmer runs avrdude to write an Intel HEX image to the flash of a
// device behind a serial bootloader.
type Programmer struct {
	Path       string
	Part       string
	Programmer string
	Baud       uint
	Image      string
	Verbose    bool
	// NoErase passes -D, which leaves the chip erase to the bootloader.
	NoErase bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (p *Programmer) Args(port string) []string {
	args := []string{
		"-p" + p.Part,
		"-c" + p.Programmer,
		"-P" + port,
		"-b" + strconv.FormatUint(uint64(p.Baud), 10),
	}
	if p.Verbose {
		args = append(args, "-v")
	}
	if p.NoErase {
		args = append(args, "-D")
	}
	return append(args, "-Uflash:w:"+p.Image+":i")
}

// Flash runs avrdude against port and returns its exit status. An error is
// only returned when avrdude could not be run at all.
func (p *Programmer) Flash(ctx context.Context, port string) (int, error) {
	flashCmd := exec.CommandContext(ctx, p.Path, p.Args(port)...)
	flashCmd.Stdin = p.Stdin
	flashCmd.Stdout = p.Stdout
	flashCmd.Stderr = p.Stderr
	glog.V(1).Infof("running: %s", strings.Join(flashCmd.Args, " "))

	err := flashCmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed to run '%s': %w", p.Path, err)
	}
	return 0, nil
}

// reportFlash turns an avrdude status into the error a command returns.
func reportFlash(w io.Writer, status int, err error) error {
	if err != nil {
		return err
	}
	if status != 0 {
		glog.Warningf("avrdude exited with status %d", status)
		failure.Fprintln(w, "Download fail!")
		return ErrFlashFailed
	}
	return nil
}

func FlashCmd() *cobra.Command {
	settings := ConfiguredSettings()
	cmd := &cobra.Command{
		Use:   "flash [port]",
		Short: "Flash the firmware image to an AVR over its serial bootloader",
		Long: "Flash the firmware image to an AVR microcontroller by running avrdude\n" +
			"against the bootloader on the given serial port. The output of avrdude\n" +
			"is shown as is.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := resolvePort(args, settings.Port)
			if err != nil {
				return err
			}

			programmer, err := programmerFromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			fmt.Printf("Flashing '%s' over serial on port '%s' ...\n", programmer.Image, port)
			status, err := programmer.Flash(cmd.Context(), port)
			return reportFlash(stdout, status, err)
		},
	}

	addFlashFlags(cmd, settings)
	return cmd
}

func addFlashFlags(cmd *cobra.Command, settings *Settings) {
	cmd.Flags().String("avrdude", settings.Avrdude.Path, "path to the avrdude executable")
	cmd.Flags().String("part", settings.Avrdude.Part, "AVR part number passed to avrdude")
	cmd.Flags().String("programmer", settings.Avrdude.Programmer, "programmer type passed to avrdude")
	cmd.Flags().Uint("flash-baud", settings.Avrdude.Baud, "baud rate used for flashing")
	cmd.Flags().String("image", settings.Avrdude.Image, "Intel HEX image to flash (default \""+directory.DefaultImagePath+"\")")
	cmd.Flags().Bool("verbose-flash", settings.Avrdude.Verbose, "let avrdude print verbose progress")
	cmd.Flags().Bool("no-erase", settings.Avrdude.NoErase, "do not let avrdude erase the chip before writing")
}

func programmerFromFlags(flags *pflag.FlagSet) (*Programmer, error) {
	path, err := flags.GetString("avrdude")
	if err != nil {
		return nil, err
	}

	part, err := flags.GetString("part")
	if err != nil {
		return nil, err
	}

	programmer, err := flags.GetString("programmer")
	if err != nil {
		return nil, err
	}

	baud, err := flags.GetUint("flash-baud")
	if err != nil {
		return nil, err
	}

	image, err := flags.GetString("image")
	if err != nil {
		return nil, err
	}

	verbose, err := flags.GetBool("verbose-flash")
	if err != nil {
		return nil, err
	}

	noErase, err := flags.GetBool("no-erase")
	if err != nil {
		return nil, err
	}

	return &Programmer{
		Path:       directory.GetAvrdudePath(path),
		Part:       part,
		Programmer: programmer,
		Baud:       baud,
		Image:      directory.GetImagePath(image),
		Verbose:    verbose,
		NoErase:    noErase,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}, nil
}
