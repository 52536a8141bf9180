// Package guard switches binaries into test mode when imported by a test, so wiring code
// under test never dials external services.
package guard

import (
	"os"
	"sync"
)

// EnvVar is read by app.InTestMode.
const EnvVar = "CONSIGNA_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(EnvVar) == "" {
			_ = os.Setenv(EnvVar, "1")
		}
	})
}
