//go:build !debug

package debug

// Debug reports whether the debug build tag is set.
const Debug = false

// Assert does nothing unless the debug build tag is set.
func Assert(condition bool, message ...string) {}
