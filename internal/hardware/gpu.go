// SPDX-License-Identifier: MIT

// Package hardware detects whether a GPU is available for speech recognition.
//
// Detection is a device-node check: it proves the NVIDIA driver is loaded, not
// that the recognizer can use it. The result is reported on the service
// status endpoint and used to pick the whisper helper device when it is
// configured as "auto".
package hardware

import (
	"os"
	"sync"
)

// nvidiaMarkers are checked in order; any hit counts as a GPU.
var nvidiaMarkers = []string{
	"/dev/nvidia0",
	"/proc/driver/nvidia/version",
}

var (
	once     sync.Once
	detected bool
)

// HasGPU reports whether an NVIDIA device is present. The probe runs once per
// process.
func HasGPU() bool {
	once.Do(func() {
		detected = probe(nvidiaMarkers)
	})
	return detected
}

func probe(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// ResolveDevice maps the configured recognizer device to a concrete one:
// "auto" becomes "cuda" when a GPU is present and "cpu" otherwise.
func ResolveDevice(configured string) string {
	if configured != "" && configured != "auto" {
		return configured
	}
	if HasGPU() {
		return "cuda"
	}
	return "cpu"
}
