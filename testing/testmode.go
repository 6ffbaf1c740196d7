// Package testing switches the binaries into test mode when imported by a test package.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// TestModeEnv is the variable the app runtime checks before starting side effects.
const TestModeEnv = "RICHHABITS_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(TestModeEnv, "1")
		for key, value := range map[string]string{
			"SESSION_SECRET": "test-session-secret",
			"CSRF_SECRET":    "test-csrf-secret",
		} {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// Main runs m with test mode forced on. Use it from a package TestMain.
func Main(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
