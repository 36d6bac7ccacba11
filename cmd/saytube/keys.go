// SPDX-License-Identifier: MIT

package main

import "strings"

type action int

const (
	actionNone action = iota
	actionRecord
	actionPlay
	actionPause
	actionStop
	actionQuit
)

// parseKey maps one input line to an action. f5 to f8 are accepted for
// people used to the desktop bindings.
func parseKey(line string) action {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "r", "f5":
		return actionRecord
	case "p", "f6":
		return actionPlay
	case "a", "f7":
		return actionPause
	case "s", "f8":
		return actionStop
	case "q", "quit", "exit":
		return actionQuit
	default:
		return actionNone
	}
}

const keyHelp = "keys: r=record  p=play  a=pause  s=stop  q=quit"
