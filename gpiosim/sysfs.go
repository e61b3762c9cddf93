// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpiosim

import (
	"bufio"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiolib/logging"
)

// readAttr reads a configfs or sysfs attribute, trimmed of whitespace.
func readAttr(dir, attr string) (string, error) {
	data, err := os.ReadFile(path.Join(dir, attr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// writeAttr writes a configfs or sysfs attribute.
func writeAttr(dir, attr, value string) error {
	return os.WriteFile(path.Join(dir, attr), []byte(value), 0666)
}

// configfsMountPoint finds where configfs is mounted, mounting it at
// /sys/kernel/config if it is not mounted.
func configfsMountPoint() (string, error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		words := strings.Fields(scanner.Text())
		if len(words) >= 6 && words[2] == "configfs" {
			return words[1], nil
		}
	}
	configfs := "/sys/kernel/config"
	logging.Debugf("mounting configfs at %s", configfs)
	if err = exec.Command("mount", "-t", "configfs", "configfs", configfs).Run(); err == nil {
		return configfs, nil
	}
	return "", errors.Wrap(err, "can't find configfs mountpoint")
}

// findConfigfsPath finds the gpio-sim directory in configfs, loading the
// gpio-sim module if necessary.
func findConfigfsPath() (string, error) {
	configfs := "/sys/kernel/config/gpio-sim"
	if _, err := os.Stat(configfs); err == nil {
		return configfs, nil
	}
	logging.Debugf("loading gpio-sim module")
	if err := exec.Command("modprobe", "gpio-sim").Run(); err == nil {
		if _, err := os.Stat(configfs); err == nil {
			return configfs, nil
		}
	}
	if mp, err := configfsMountPoint(); err == nil {
		configfs = path.Join(mp, "gpio-sim")
		if _, err := os.Stat(configfs); err == nil {
			return configfs, nil
		}
	}
	return "", errors.New("gpio-sim module not loaded")
}
