//go:build !physicsdebug

package island

// Assertions are compiled out, build with -tags physicsdebug to enable them
const AssertionsEnabled = false

func assert(condition bool, format string, args ...any) {}
