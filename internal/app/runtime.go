package app

import (
	"os"
	"strconv"
)

const testModeEnv = "RICHHABITS_TEST_MODE"

// InTestMode reports whether RICHHABITS_TEST_MODE asks the binaries to skip connecting to
// Postgres, Redis and the listener. Any strconv.ParseBool truthy value enables it.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	return err == nil && on
}
