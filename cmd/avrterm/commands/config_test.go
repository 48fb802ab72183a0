package commands

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/lillib/avrterm/cmd/avrterm/directory"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s, err := decodeSettings(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "", s.Port)
	assert.Equal(t, AvrdudeSettings{
		Part:       "m328p",
		Programmer: "arduino",
		Baud:       57600,
		Verbose:    true,
		NoErase:    true,
	}, s.Avrdude)
	assert.Equal(t, ConsoleSettings{
		Baud:        115200,
		Settle:      500 * time.Millisecond,
		ReadTimeout: 10 * time.Millisecond,
	}, s.Console)
}

func TestSetConfig(t *testing.T) {
	t.Setenv(directory.UserConfigPathEnv, filepath.Join(t.TempDir(), "config.yaml"))
	cfg, err := directory.GetUserConfig()
	require.NoError(t, err)

	require.NoError(t, setConfig(cfg, "port", "/dev/ttyACM0"))
	require.NoError(t, setConfig(cfg, "avrdude.baud", "115200"))
	require.NoError(t, setConfig(cfg, "Console.Settle", "2s"))
	require.NoError(t, setConfig(cfg, "avrdude.no-erase", "false"))
	require.NoError(t, directory.WriteConfig(cfg))

	s, err := GetSettings()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", s.Port)
	assert.Equal(t, uint(115200), s.Avrdude.Baud)
	assert.False(t, s.Avrdude.NoErase)
	assert.Equal(t, 2*time.Second, s.Console.Settle)
	assert.Equal(t, "m328p", s.Avrdude.Part)

	written, err := directory.GetUserConfig()
	require.NoError(t, err)
	assert.False(t, written.IsSet("avrdude.part"), "defaults must not be persisted")
}

func TestSetConfigRejects(t *testing.T) {
	cfg := viper.New()
	assert.Error(t, setConfig(cfg, "avrdude.speed", "9600"))
	assert.Error(t, setConfig(cfg, "console.settle", "soon"))
	assert.Error(t, setConfig(cfg, "console.baud", "fast"))

	s, err := decodeSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, s.Console.Settle)
	assert.Equal(t, uint(115200), s.Console.Baud)
}

func TestShowConfig(t *testing.T) {
	cfg := viper.New()
	require.NoError(t, setConfig(cfg, "port", "/dev/ttyUSB1"))

	var buf bytes.Buffer
	require.NoError(t, showConfig(&buf, cfg))
	assert.Contains(t, buf.String(), "port: /dev/ttyUSB1\n")
	assert.Contains(t, buf.String(), "programmer: arduino\n")
	assert.Contains(t, buf.String(), "settle: 500ms\n")
}

func TestSettingKeys(t *testing.T) {
	keys := SettingKeys()
	assert.Len(t, keys, len(defaultSettings))
	assert.Contains(t, keys, "console.read-timeout")
	assert.True(t, isSettingKey("avrdude.image"))
	assert.False(t, isSettingKey("avrdude"))
}
