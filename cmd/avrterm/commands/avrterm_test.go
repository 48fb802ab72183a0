package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBootloader struct {
	status   int
	flashErr error
	flashed  []string
	sleeps   []time.Duration
	consoles []string
	out      bytes.Buffer
}

func (f *fakeBootloader) bootloader() *bootloader {
	return &bootloader{
		flash: func(_ context.Context, port string) (int, error) {
			f.flashed = append(f.flashed, port)
			return f.status, f.flashErr
		},
		console: func(_ context.Context, port string) error {
			f.consoles = append(f.consoles, port)
			return nil
		},
		sleep: func(_ context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		},
		settle: 500 * time.Millisecond,
		out:    &f.out,
	}
}

func TestBootloaderFlashFailure(t *testing.T) {
	for _, status := range []int{1, 2, -1, 255} {
		f := &fakeBootloader{status: status}
		err := f.bootloader().Run(context.Background(), "/dev/ttyUSB0")
		assert.ErrorIs(t, err, ErrFlashFailed)
		assert.Contains(t, f.out.String(), "Download fail!")
		assert.True(t, strings.HasSuffix(f.out.String(), "Done\n"), f.out.String())
		assert.Equal(t, []string{"/dev/ttyUSB0"}, f.flashed)
		assert.Empty(t, f.sleeps)
		assert.Empty(t, f.consoles)
	}
}

func TestBootloaderFlashError(t *testing.T) {
	f := &fakeBootloader{status: -1, flashErr: errors.New("exec: \"avrdude\": executable file not found in $PATH")}
	err := f.bootloader().Run(context.Background(), "/dev/ttyUSB0")
	assert.EqualError(t, err, f.flashErr.Error())
	assert.Empty(t, f.consoles)
	assert.NotContains(t, f.out.String(), "Done")
}

func TestBootloaderSuccess(t *testing.T) {
	f := &fakeBootloader{}
	require.NoError(t, f.bootloader().Run(context.Background(), "/dev/ttyUSB0"))
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, f.sleeps)
	assert.Equal(t, []string{"/dev/ttyUSB0"}, f.consoles)
	assert.NotContains(t, f.out.String(), "Download fail!")
	assert.Contains(t, f.out.String(), "Done")
}

func TestBootloaderInterruptedWhileSettling(t *testing.T) {
	f := &fakeBootloader{}
	b := f.bootloader()
	b.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Run(ctx, "/dev/ttyUSB0"))
	assert.Empty(t, f.consoles)
}

func TestAvrtermCmdFlags(t *testing.T) {
	t.Setenv("AVRTERM_USER_CONFIG_PATH", t.TempDir()+"/config.yaml")
	cmd := AvrtermCmd(Info{Version: "test", Date: "today"})

	for _, name := range []string{"flash-baud", "console-baud", "settle", "image", "part", "programmer"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("v"))

	baud, err := cmd.Flags().GetUint("flash-baud")
	require.NoError(t, err)
	assert.Equal(t, uint(57600), baud)

	baud, err = cmd.Flags().GetUint("console-baud")
	require.NoError(t, err)
	assert.Equal(t, uint(115200), baud)

	settle, err := cmd.Flags().GetDuration("settle")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, settle)
}
