package app

import (
	"log"
	"mime"
	"os"
	"sync/atomic"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
)

// TestModeEnv disables runtime side effects when set to "1".
const TestModeEnv = "ESTATE_TEST_MODE"

var testMode atomic.Bool

func init() {
	RefreshTestMode()
	if mime.TypeByExtension(".xlsx") == "" {
		if err := mime.AddExtensionType(".xlsx", statements.XLSXContentType); err != nil {
			log.Printf("app: register xlsx mime type: %v", err)
		}
	}
}

// InTestMode reports whether the binaries should skip startup.
func InTestMode() bool {
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() {
	testMode.Store(os.Getenv(TestModeEnv) == "1")
}
