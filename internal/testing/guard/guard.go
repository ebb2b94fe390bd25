// Package guard switches the process into test mode. Blank-import it from
// tests that run cmd or app startup code.
package guard

import "os"

func init() {
	if os.Getenv("ESTATE_TEST_MODE") == "" {
		_ = os.Setenv("ESTATE_TEST_MODE", "1")
	}
}
