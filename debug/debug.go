// Package debug provides assertions and stack capture helpers used across
// couplex. Assertions are compiled out unless the "debug" build tag is set.
package debug

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Stack returns a compact rendering of the calling stack, trimmed to the
// frames a couplex user cares about.
func Stack() string {
	var sbb strings.Builder
	WriteStack(&sbb)
	return sbb.String()
}

// WriteStack writes the calling stack to sbb, one "function\n\tfile:line"
// entry per frame. Runtime internals are skipped; unless the debug build tag
// is set, file paths are shortened to their base name.
func WriteStack(sbb *strings.Builder) {
	pc := make([]uintptr, 16)
	n := runtime.Callers(3, pc)
	if n == 0 {
		return
	}
	pc = pc[:n]
	frames := runtime.CallersFrames(pc)
	for {
		frame, more := frames.Next()
		fe := strings.Split(frame.Function, "/")
		function := fe[len(fe)-1]
		file := frame.File

		if strings.HasPrefix(function, "runtime.") {
			if !more {
				break
			}
			continue
		}
		if !Debug {
			file = filepath.Base(file)
		}

		sbb.WriteString(function)
		sbb.WriteByte('\n')
		sbb.WriteByte('\t')
		sbb.WriteString(file)
		sbb.WriteByte(':')
		sbb.WriteString(strconv.Itoa(frame.Line))
		sbb.WriteByte('\n')
		if !more {
			break
		}
	}
}
