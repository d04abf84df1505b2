package ibus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoAddress is returned when no IBus daemon address can be found.
var ErrNoAddress = errors.New("ibus address not found")

var machineIDFiles = []string{"/var/lib/dbus/machine-id", "/etc/machine-id"}

// Address locates the IBus daemon. IBUS_ADDRESS wins; otherwise the
// address is read from the bus file the daemon writes for the current
// display.
func Address() (string, error) {
	return resolveAddress(os.Getenv, os.ReadFile)
}

func resolveAddress(getenv func(string) string, readFile func(string) ([]byte, error)) (string, error) {
	if addr := getenv("IBUS_ADDRESS"); addr != "" {
		return addr, nil
	}
	path, err := busFilePath(getenv, readFile)
	if err != nil {
		return "", err
	}
	data, err := readFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAddress, err)
	}
	addr := parseBusFile(data)
	if addr == "" {
		return "", fmt.Errorf("%w: no IBUS_ADDRESS in %s", ErrNoAddress, path)
	}
	return addr, nil
}

// busFilePath returns $XDG_CONFIG_HOME/ibus/bus/<machine-id>-<host>-<display>.
func busFilePath(getenv func(string) string, readFile func(string) ([]byte, error)) (string, error) {
	if p := getenv("IBUS_ADDRESS_FILE"); p != "" {
		return p, nil
	}

	host, number := displayParts(getenv("DISPLAY"), getenv("WAYLAND_DISPLAY"))

	var id string
	for _, f := range machineIDFiles {
		data, err := readFile(f)
		if err == nil {
			id = strings.TrimSpace(string(data))
			if id != "" {
				break
			}
		}
	}
	if id == "" {
		return "", fmt.Errorf("%w: no machine id", ErrNoAddress)
	}

	dir := getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home := getenv("HOME")
		if home == "" {
			return "", fmt.Errorf("%w: neither XDG_CONFIG_HOME nor HOME set", ErrNoAddress)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ibus", "bus", fmt.Sprintf("%s-%s-%s", id, host, number)), nil
}

// displayParts splits an X display "host:number.screen". Without an X
// display the Wayland socket name is the display number.
func displayParts(display, wayland string) (host, number string) {
	if display == "" && wayland != "" {
		return "unix", wayland
	}
	if display == "" {
		display = ":0.0"
	}
	host, rest, _ := strings.Cut(display, ":")
	number, _, _ = strings.Cut(rest, ".")
	if host == "" {
		host = "unix"
	}
	if number == "" {
		number = "0"
	}
	return host, number
}

func parseBusFile(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if v, ok := strings.CutPrefix(line, "IBUS_ADDRESS="); ok {
			return v
		}
	}
	return ""
}
