//go:build physicsdebug

package island

import "fmt"

// Assertions are enabled, a broken contract panics
const AssertionsEnabled = true

func assert(condition bool, format string, args ...any) {
	if !condition {
		panic(fmt.Sprintf("island: "+format, args...))
	}
}
