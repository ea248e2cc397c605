//go:build unix

package jobserver

import "strings"

const (
	authKey    = "--jobserver-auth="
	fdsKey     = "--jobserver-fds="
	fifoPrefix = "fifo:"
)

// extractAuth returns the jobserver descriptor value embedded in a
// MAKEFLAGS-style string, or "" when none is present.
//
// The string is split into blank-separated words. --jobserver-auth= is
// authoritative; --jobserver-fds= (older make) is only consulted when no
// -auth word carried a value. When the same key repeats, the last
// occurrence wins.
func extractAuth(makeflags string) string {
	words := strings.Fields(makeflags)

	var val string
	for _, w := range words {
		if strings.HasPrefix(w, authKey) {
			val = w[len(authKey):]
		}
	}
	if val == "" {
		for _, w := range words {
			if strings.HasPrefix(w, fdsKey) {
				val = w[len(fdsKey):]
			}
		}
	}
	return val
}
