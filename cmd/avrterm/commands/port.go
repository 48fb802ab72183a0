// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/lillib/avrterm/cmd/avrterm/directory"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

type Port struct {
	Name         string `json:"name" yaml:"name"`
	USB          bool   `json:"usb" yaml:"usb"`
	VID          string `json:"vid,omitempty" yaml:"vid,omitempty"`
	PID          string `json:"pid,omitempty" yaml:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Product      string `json:"product,omitempty" yaml:"product,omitempty"`
}

func (p Port) Short() string {
	if !p.USB {
		return p.Name
	}
	return fmt.Sprintf("%s\t%s:%s\t%s", p.Name, p.VID, p.PID, p.Product)
}

type Ports struct {
	Ports []Port `json:"ports" yaml:"ports"`
}

func (p Ports) Elements() []Short {
	var res []Short
	for _, port := range p.Ports {
		res = append(res, port)
	}
	return res
}

func PortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ports",
		Short:        "List the serial ports a device could be attached to",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}

			enc, err := parseOutputFlag(cmd)
			if err != nil {
				return err
			}

			ports, err := listPorts(all)
			if err != nil {
				return err
			}
			if len(ports.Ports) == 0 {
				fmt.Println("No serial ports detected.")
				return nil
			}
			return enc.Encode(ports)
		},
	}

	cmd.Flags().Bool("all", false, "if set, will show all available ports")
	cmd.Flags().StringP("output", "o", "short", "set output format to json, yaml or short")
	return cmd
}

func listPorts(all bool) (Ports, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return Ports{}, err
	}

	byName := map[string]Port{}
	var names []string
	for _, d := range details {
		names = append(names, d.Name)
		byName[d.Name] = Port{
			Name:         d.Name,
			USB:          d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
	}
	if !all {
		names = filterPorts(names)
	}

	var res Ports
	for _, name := range names {
		res.Ports = append(res.Ports, byName[name])
	}
	return res, nil
}

func SetPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "set-port",
		Short:        "Select the serial port you want to use",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}

			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}

			port, err := pickPort(all)
			if err != nil {
				return err
			}
			cfg.Set(PortCfgKey, port)
			if err := directory.WriteConfig(cfg); err != nil {
				return err
			}
			fmt.Printf("Using port '%s' from now on.\n", port)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "if set, will show all available ports")
	return cmd
}

func PortExists(port string) (bool, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return false, err
	}
	for _, p := range ports {
		if p == port {
			return true, nil
		}
	}
	return false, nil
}

// resolvePort picks the port to talk to. An explicit argument is used as
// given; otherwise the configured port is used if it is present, and the
// operator is asked as a last resort.
func resolvePort(args []string, configured string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	if configured != "" {
		exists, err := PortExists(configured)
		if err != nil {
			return "", err
		}
		if exists {
			return configured, nil
		}
		fmt.Printf("The configured port '%s' is not present.\n", configured)
	}
	return pickPort(false)
}

func pickPort(all bool) (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}
	if !all {
		ports = filterPorts(ports)
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports detected. Is the board plugged in and the USB serial driver installed?")
	}

	prompt := promptui.Select{
		Label:     "Choose what serial port you want to use",
		Items:     ports,
		Templates: &promptui.SelectTemplates{},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("you didn't select anything")
	}

	return ports[i], nil
}

func filterPorts(ports []string) []string {
	switch runtime.GOOS {
	case "darwin":
		return darwinFilterPaths(ports)
	case "linux":
		return linuxFilterPaths(ports)
	default:
		return ports
	}
}

func darwinFilterPaths(paths []string) []string {
	existing := map[string]struct{}{}
	for _, p := range paths {
		existing[p] = struct{}{}
	}
	var res []string
	for _, path := range paths {
		if strings.HasPrefix(path, "/dev/cu") && !strings.Contains(path, "Bluetooth") {
			res = append(res, path)
		} else if strings.HasPrefix(path, "/dev/tty") && !strings.Contains(path, "Bluetooth") {
			candidate := "/dev/cu" + strings.TrimPrefix(path, "/dev/tty")
			if _, exists := existing[candidate]; !exists {
				res = append(res, path)
			}
		}
	}
	return res
}

// Arduino boards show up as ttyUSB (FTDI, CH340) or ttyACM (16U2).
func linuxFilterPaths(paths []string) []string {
	res := []string(nil)
	for _, path := range paths {
		if strings.Contains(path, "tty") {
			if strings.Contains(path, "USB") || strings.Contains(path, "ACM") {
				res = append(res, path)
			}
		}
	}
	return res
}
