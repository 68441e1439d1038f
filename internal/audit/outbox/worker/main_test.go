//go:build !integration

package worker_test

import (
	"testing"

	"go.uber.org/goleak"
)

// Container clients keep background goroutines, so leak checks run only in
// the unit build.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
