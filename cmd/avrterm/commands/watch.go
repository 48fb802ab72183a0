// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

func WatchCmd() *cobra.Command {
	settings := ConfiguredSettings()
	cmd := &cobra.Command{
		Use:   "watch [port]",
		Short: "Flash the firmware image every time it is rebuilt",
		Long: "Watch the firmware image and flash it to the device every time the\n" +
			"build writes a new one. A failed flash is reported and the watch goes on.",
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

			image := programmer.Image
			if stat, err := os.Stat(image); err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("no such file: '%s'", image)
				}
				return fmt.Errorf("can't stat file '%s', reason: %w", image, err)
			} else if stat.IsDir() {
				return fmt.Errorf("can't flash directory: '%s'", image)
			}

			w, err := newImageWatcher(image)
			if err != nil {
				return err
			}
			defer w.Close()

			flash := func(ctx context.Context) {
				fmt.Printf("Flashing '%s' over serial on port '%s' ...\n", image, port)
				status, err := programmer.Flash(ctx, port)
				if err := reportFlash(stdout, status, err); err != nil && err != ErrFlashFailed {
					fmt.Println("Error:", err)
				}
			}

			flash(cmd.Context())
			w.run(cmd.Context(), os.Stdout, flash)
			return nil
		},
	}

	addFlashFlags(cmd, settings)
	return cmd
}

// imageWatcher reports rewrites of a single file. The directory is watched
// rather than the file, since builds often replace the image by renaming a
// new one over it.
type imageWatcher struct {
	watcher  *fsnotify.Watcher
	image    string
	debounce time.Duration
}

func newImageWatcher(image string) (*imageWatcher, error) {
	abs, err := filepath.Abs(image)
	if err != nil {
		return nil, err
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	return &imageWatcher{
		watcher:  w,
		image:    abs,
		debounce: 100 * time.Millisecond,
	}, nil
}

func (w *imageWatcher) Close() error {
	return w.watcher.Close()
}

func (w *imageWatcher) isImageChange(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.image {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

// run calls onChange once per burst of writes to the image until ctx is
// done. Writes arriving while onChange runs start the next burst.
func (w *imageWatcher) run(ctx context.Context, out io.Writer, onChange func(context.Context)) {
	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isImageChange(event) {
				continue
			}
			glog.V(1).Infof("watch event: %s", event)
			if pending == nil {
				fmt.Fprintf(out, "File modified '%s'\n", event.Name)
			}
			pending = time.After(w.debounce)
		case <-pending:
			pending = nil
			onChange(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintln(out, "Watch error:", err)
		case <-ctx.Done():
			return
		}
	}
}
