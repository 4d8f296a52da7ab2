package container

import (
	"runtime"
	"strconv"
	"strings"
)

// goid returns the current goroutine ID. It links a Make call on an outer
// container reference back to the build running on the same goroutine.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(idField, 10, 64)
	return id
}
