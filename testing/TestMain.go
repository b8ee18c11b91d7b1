// Package testing sets MERIDIAN_TEST_MODE for suites that run the
// binaries' wiring code.
package testing

import (
	"os"
	stdtesting "testing"

	_ "github.com/meridian-mfg/meridian-erp/internal/testing/guard"
)

func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
