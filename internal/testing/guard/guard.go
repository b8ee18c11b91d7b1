// Package guard flips the process into test mode on import. Test files
// blank-import it so main() helpers never bind ports or dial services.
package guard

import "os"

func init() {
	if os.Getenv("MERIDIAN_TEST_MODE") == "" {
		_ = os.Setenv("MERIDIAN_TEST_MODE", "1")
	}
}
