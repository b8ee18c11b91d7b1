package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// Test mode keeps main() from binding ports or touching external services
// when the packages under cmd are exercised from tests.
const testModeEnv = "MERIDIAN_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether MERIDIAN_TEST_MODE=1 was set. The environment
// is read once; use RefreshTestMode after changing it mid-process.
func InTestMode() bool {
	testModeOnce.Do(func() { testMode.Store(os.Getenv(testModeEnv) == "1") })
	return testMode.Load()
}

// RefreshTestMode re-reads the environment flag.
func RefreshTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}
