// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/saytube/internal/log"
	"github.com/rs/zerolog"
)

func envLogger() zerolog.Logger { return log.WithComponent("config") }

// lookup returns the trimmed value of key and whether it is set to something
// non-blank.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// secretKey reports whether the variable name looks like it carries a
// credential and must not be echoed.
func secretKey(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"key", "password", "token", "secret"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

// parseEnv applies parse to the variable's value, falling back to def on a
// missing value or a parse error. kind names the expected type in warnings.
func parseEnv[T any](key, kind string, def T, parse func(string) (T, error)) T {
	raw, ok := lookup(key)
	if !ok {
		return def
	}
	logger := envLogger()
	v, err := parse(raw)
	if err != nil {
		ev := logger.Warn().Str("key", key).Str("want", kind)
		if !secretKey(key) {
			ev = ev.Str("value", raw)
		}
		ev.Msg("ignoring malformed environment override")
		return def
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if secretKey(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", raw)
	}
	ev.Msg("environment override applied")
	return v
}

// ParseString returns the variable's value, or defaultValue when it is unset
// or blank.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, "string", defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt returns the variable parsed as a base-10 integer.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, "int", defaultValue, strconv.Atoi)
}

// ParseDuration accepts Go duration syntax ("90s", "2m"); a bare integer is
// taken as seconds.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, "duration", defaultValue, func(s string) (time.Duration, error) {
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return time.ParseDuration(s)
	})
}

// ParseBool understands true/false, 1/0, yes/no and on/off in any case.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, "bool", defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}

func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, "float", defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseList splits the value on whitespace, e.g. a player command line.
func ParseList(key string, defaultValue []string) []string {
	return parseEnv(key, "list", defaultValue, func(s string) ([]string, error) {
		return strings.Fields(s), nil
	})
}
