package directory

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv(UserConfigPathEnv, path)

	cfg, err := GetUserConfig()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFileUsed())

	cfg.Set("port", "/dev/ttyUSB0")
	require.NoError(t, WriteConfig(cfg))

	again, err := GetUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", again.GetString("port"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(path), ".config.tmp.yaml"))
}

func TestGetAvrdudePath(t *testing.T) {
	avrdude := "avrdude"
	if runtime.GOOS == "windows" {
		avrdude = "avrdude.exe"
	}
	assert.Equal(t, avrdude, GetAvrdudePath(""))
	assert.Equal(t, "/opt/avr/bin/avrdude", GetAvrdudePath("/opt/avr/bin/avrdude"))

	t.Setenv(AvrdudePathEnv, "/usr/local/bin/avrdude")
	assert.Equal(t, "/usr/local/bin/avrdude", GetAvrdudePath("/opt/avr/bin/avrdude"))
}

func TestGetImagePath(t *testing.T) {
	assert.Equal(t, DefaultImagePath, GetImagePath(""))
	assert.Equal(t, "build/blink.hex", GetImagePath("build/blink.hex"))

	t.Setenv(ImagePathEnv, "out/app.hex")
	assert.Equal(t, "out/app.hex", GetImagePath("build/blink.hex"))
}
