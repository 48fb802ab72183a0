// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/lillib/avrterm/cmd/avrterm/commands"
)

var (
	version   = "v0.1.0"
	buildDate = "unknown"
)

func main() {
	info := commands.Info{
		Date:    buildDate,
		Version: version,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := commands.AvrtermCmd(info)
	err := cmd.ExecuteContext(ctx)
	stop()
	glog.Flush()
	if err != nil {
		if !errors.Is(err, commands.ErrFlashFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
