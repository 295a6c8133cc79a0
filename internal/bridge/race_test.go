//go:build race

package bridge

import "testing"

func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: lfq ring publishes through cross-variable memory ordering")
}
