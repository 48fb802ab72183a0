package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_linuxFilterPaths(t *testing.T) {
	in := []string{"/dev/ttyS0", "/dev/ttyS1", "/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyACM1", "/dev/ttyAMA0"}
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyACM1"}, linuxFilterPaths(in))
	assert.Nil(t, linuxFilterPaths([]string{"/dev/ttyS0"}))
}

func Test_darwinFilterPaths(t *testing.T) {
	in := []string{
		"/dev/cu.Bluetooth-Incoming-Port",
		"/dev/tty.Bluetooth-Incoming-Port",
		"/dev/cu.usbserial-1420",
		"/dev/tty.usbserial-1420",
		"/dev/tty.usbmodem14101",
	}
	assert.Equal(t, []string{"/dev/cu.usbserial-1420", "/dev/tty.usbmodem14101"}, darwinFilterPaths(in))
}

func Test_resolvePortArgument(t *testing.T) {
	port, err := resolvePort([]string{"/dev/ttyUSB0"}, "/dev/ttyACM0")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", port)
}

func TestPortsEncoding(t *testing.T) {
	ports := Ports{Ports: []Port{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", USB: true, VID: "1A86", PID: "7523", Product: "USB2.0-Serial"},
	}}

	tests := []struct {
		output string
		want   string
	}{
		{
			output: "short",
			want:   "/dev/ttyS0\n/dev/ttyUSB0\t1A86:7523\tUSB2.0-Serial\n",
		},
		{
			output: "yaml",
			want: "ports:\n" +
				"- name: /dev/ttyS0\n" +
				"  usb: false\n" +
				"- name: /dev/ttyUSB0\n" +
				"  usb: true\n" +
				"  vid: 1A86\n" +
				"  pid: \"7523\"\n" +
				"  product: USB2.0-Serial\n",
		},
	}

	for _, test := range tests {
		t.Run(test.output, func(t *testing.T) {
			var buf bytes.Buffer
			enc, err := newEncoder(&buf, test.output)
			require.NoError(t, err)
			require.NoError(t, enc.Encode(ports))
			assert.Equal(t, test.want, buf.String())
		})
	}
}

func TestPortsEncodingJSON(t *testing.T) {
	var buf bytes.Buffer
	enc, err := newEncoder(&buf, "JSON")
	require.NoError(t, err)
	require.NoError(t, enc.Encode(Ports{Ports: []Port{{Name: "/dev/ttyUSB0", USB: true, VID: "2341", PID: "0043"}}}))
	assert.JSONEq(t, `{"ports":[{"name":"/dev/ttyUSB0","usb":true,"vid":"2341","pid":"0043"}]}`, buf.String())
}

func TestUnknownOutput(t *testing.T) {
	_, err := newEncoder(&bytes.Buffer{}, "xml")
	assert.Error(t, err)

	err = newShortEncoder(&bytes.Buffer{}).Encode(42)
	assert.Error(t, err)
}
