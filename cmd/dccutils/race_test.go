//go:build race

package main

import "testing"

func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: bridged requests cross the lfq submission ring")
}
