// Package vklog provides the pipeline's gated diagnostic logger.
//
// Valknut runs as a library embedded in an MCP server, so ordinary stdlib
// log output would corrupt the JSON-RPC stream on stdio transports. Output
// is opt-in and routed through an explicit writer, the same shape as the
// teacher's own debug package.
package vklog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// EnableDebug can be overridden at build time:
// go build -ldflags "-X github.com/valknut-dev/valknut/internal/vklog.EnableDebug=true"
var EnableDebug = "false"

// RPCMode suppresses all output to stdio when a stdio JSON-RPC transport is active.
var RPCMode = false

var (
	mu     sync.Mutex
	output io.Writer
)

// SetRPCMode toggles stdio suppression; call this before starting a stdio transport.
func SetRPCMode(enabled bool) {
	RPCMode = enabled
}

// SetOutput sets the writer for diagnostic output. Pass nil to disable.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func enabled() bool {
	if RPCMode {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("VALKNUT_DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Stage logs a line tagged with the pipeline stage emitting it
// (discover, parse, extract, normalize, score, impact, assemble).
func Stage(stage, format string, args ...interface{}) {
	if !enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[%s] "+format+"\n", append([]interface{}{stage}, args...)...)
}

// Warn logs a non-fatal diagnostic that should also be surfaced to callers
// via PipelineResult.Warnings; this only covers the developer-facing echo.
func Warn(stage, format string, args ...interface{}) {
	if !enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[%s:WARN] "+format+"\n", append([]interface{}{stage}, args...)...)
}
