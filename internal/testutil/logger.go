// Package testutil provides shared test helpers for faceanalyzer packages.
package testutil

import (
	"testing"

	"go.uber.org/zap"
)

// Logger returns a development logger when tests run with -v and a no-op
// logger otherwise, so pipeline debug output only shows up on request.
func Logger() *zap.Logger {
	if !testing.Verbose() {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		panic("testutil.Logger: " + err.Error())
	}
	return l
}
