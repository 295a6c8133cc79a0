//go:build !race

package bridge

import "testing"

func skipRace(testing.TB) {}
