package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

const systemInfoSchema = `
{
  "type": "object",
  "properties": {}
}
`

type SystemInfo struct{}

func NewSystemInfo() *SystemInfo {
	return &SystemInfo{}
}

// Snapshot reports host, OS, architecture, CPU count and Go runtime
// memory. Richer metrics (per-core load, disk) stay behind
// execute_command where the model can ask for them explicitly.
func (s *SystemInfo) Snapshot(ctx context.Context, args json.RawMessage) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	wd, _ := os.Getwd()

	var b strings.Builder
	fmt.Fprintf(&b, "Hostname: %s\n", hostname)
	fmt.Fprintf(&b, "OS: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "Arch: %s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "CPUs: %d\n", runtime.NumCPU())
	fmt.Fprintf(&b, "Process memory: %.1f MiB\n", float64(mem.Sys)/(1024*1024))
	fmt.Fprintf(&b, "Working directory: %s\n", wd)
	fmt.Fprintf(&b, "Time: %s\n", time.Now().Format(time.RFC3339))
	return b.String(), nil
}

func (s *SystemInfo) Definitions() []Definition {
	return []Definition{
		define("system_info", "Get a snapshot of host, OS, CPU and memory information", systemInfoSchema, s.Snapshot),
	}
}
