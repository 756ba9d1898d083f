package cli

import (
	"testing"

	"go.uber.org/goleak"
)

// TestPackageLeaks runs goleak verification for the entire package
func TestPackageLeaks(t *testing.T) {
	defer goleak.VerifyNone(t,
		// The signal handler goroutine lives until a signal arrives
		goleak.IgnoreTopFunction("github.com/feedloom/backfill/internal/interface/cli.setupSignalHandler.func1"),
	)
}
