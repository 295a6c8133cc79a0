//go:build !race

package main

import "testing"

func skipRace(testing.TB) {}
