// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 32

// captureStack renders the caller's stack, skipping skip frames above the
// caller of captureStack.
func captureStack(skip int) string {
	pc := make([]uintptr, maxStackDepth)
	// +2 skips runtime.Callers and captureStack.
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pc[:n])
	for {
		fr, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		if !more {
			break
		}
	}
	return b.String()
}
