// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/lillib/avrterm/cmd/avrterm/display"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.bug.st/serial"
)

const (
	keyReturn  = 0x0D
	keyNewline = 0x0A

	// The device ends the session by sending EOT.
	byteEndOfSession = 0x04
	byteDelete       = 0x7F
)

type surface interface {
	Key() (byte, bool)
	Put(b byte)
	Backspace()
}

type consoleDisplay interface {
	surface
	Interrupted() <-chan struct{}
	Close() error
}

// relay moves bytes between the surface and the port until the device sends
// EOT or ctx is done. Write failures are dropped and read failures look like
// silence.
func relay(ctx context.Context, s surface, port io.ReadWriter) error {
	buf := make([]byte, 1)
	readFailed := false
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if c, ok := s.Key(); ok {
			if c == keyReturn {
				c = keyNewline
			}
			if _, err := port.Write([]byte{c}); err != nil {
				glog.V(2).Infof("dropped key 0x%02X: %v", c, err)
			}
		}

		n, err := port.Read(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if !readFailed {
				glog.Warningf("serial read failed: %v", err)
				readFailed = true
			}
			continue
		}
		if n == 0 {
			continue
		}

		switch c := buf[0]; c {
		case byteEndOfSession:
			return nil
		case byteDelete:
			s.Backspace()
		default:
			s.Put(c)
		}
	}
}

type console struct {
	openPort    func(port string) (io.ReadWriteCloser, error)
	openDisplay func() (consoleDisplay, error)
}

func newConsole(baud uint, readTimeout time.Duration) *console {
	return &console{
		openPort: func(port string) (io.ReadWriteCloser, error) {
			dev, err := serialOpen(port, &serial.Mode{
				BaudRate: int(baud),
				DataBits: 8,
				Parity:   serial.NoParity,
				StopBits: serial.OneStopBit,
			})
			if err != nil {
				return nil, err
			}
			if err := dev.SetReadTimeout(readTimeout); err != nil {
				dev.Close()
				return nil, err
			}
			return dev, nil
		},
		openDisplay: func() (consoleDisplay, error) {
			t, err := display.Open()
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
}

// Run attaches the terminal to port until the device ends the session or
// the operator interrupts. The terminal and the port are released on every
// path out.
func (c *console) Run(ctx context.Context, port string) error {
	dev, err := c.openPort(port)
	if err != nil {
		return err
	}
	defer dev.Close()

	screen, err := c.openDisplay()
	if err != nil {
		return fmt.Errorf("failed to take over the terminal: %w", err)
	}
	defer screen.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-screen.Interrupted():
			cancel()
		case <-ctx.Done():
		}
	}()

	return relay(ctx, screen, dev)
}

func serialOpen(port string, mode *serial.Mode) (serial.Port, error) {
	dev, err := serial.Open(port, mode)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("the port '%s' was not found", port)
	}
	if portErr, ok := err.(*serial.PortError); ok && portErr.Code() == serial.PortNotFound {
		return nil, fmt.Errorf("the port '%s' was not found", port)
	}
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func ConsoleCmd() *cobra.Command {
	settings := ConfiguredSettings()
	cmd := &cobra.Command{
		Use:   "console [port]",
		Short: "Attach the terminal to the serial console of an AVR",
		Long: "Attach the terminal to the serial console of an AVR. Keys are sent as\n" +
			"typed, with return sent as a newline. The session ends when the device\n" +
			"sends EOT (0x04) or when Ctrl-C is pressed.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := resolvePort(args, settings.Port)
			if err != nil {
				return err
			}

			con, settle, err := consoleFromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := sleepContext(ctx, settle); err != nil {
				return nil
			}
			return con.Run(ctx, port)
		},
	}

	addConsoleFlags(cmd, settings)
	return cmd
}

func addConsoleFlags(cmd *cobra.Command, settings *Settings) {
	cmd.Flags().Uint("console-baud", settings.Console.Baud, "baud rate of the serial console")
	cmd.Flags().Duration("settle", settings.Console.Settle, "time to let the device reset before attaching")
	cmd.Flags().Duration("read-timeout", settings.Console.ReadTimeout, "how long a serial read waits for a byte, 0 polls")
}

func consoleFromFlags(flags *pflag.FlagSet) (*console, time.Duration, error) {
	baud, err := flags.GetUint("console-baud")
	if err != nil {
		return nil, 0, err
	}

	settle, err := flags.GetDuration("settle")
	if err != nil {
		return nil, 0, err
	}

	readTimeout, err := flags.GetDuration("read-timeout")
	if err != nil {
		return nil, 0, err
	}

	return newConsole(baud, readTimeout), settle, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
