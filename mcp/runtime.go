package mcp

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"spritebot/config"
)

// Runtime describes the interpreter a provider is launched with.
type Runtime struct {
	Command   string
	Installed bool
	Version   string
	Path      string
	Error     string
}

// Minimum interpreter versions for the bundled tool servers.
var minVersions = map[string]string{
	"node":    "18.0.0",
	"python3": "3.10.0",
	"python":  "3.10.0",
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// RuntimeChecker resolves provider commands on PATH and reads their
// versions. Results are memoized per command.
type RuntimeChecker struct {
	runtimes map[string]*Runtime

	lookPath func(file string) (string, error)
	output   func(name string, args ...string) ([]byte, error)
}

func NewRuntimeChecker() *RuntimeChecker {
	return &RuntimeChecker{
		runtimes: make(map[string]*Runtime),
		lookPath: exec.LookPath,
		output: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
	}
}

// Preflight checks the command of every provider, in config order, once
// per distinct command.
func (rc *RuntimeChecker) Preflight(providers []config.ToolProviderConfig) []*Runtime {
	var out []*Runtime
	seen := make(map[string]bool)
	for _, p := range providers {
		if seen[p.Command] {
			continue
		}
		seen[p.Command] = true
		out = append(out, rc.Check(p.Command))
	}
	return out
}

// Check resolves command and, for known interpreters, enforces the
// minimum version.
func (rc *RuntimeChecker) Check(command string) *Runtime {
	if rt, ok := rc.runtimes[command]; ok {
		return rt
	}
	rt := rc.detect(command)
	rc.runtimes[command] = rt
	return rt
}

func (rc *RuntimeChecker) detect(command string) *Runtime {
	rt := &Runtime{Command: command}

	path, err := rc.lookPath(command)
	if err != nil {
		rt.Error = fmt.Sprintf("%s not found", command)
		return rt
	}
	rt.Path = path
	rt.Installed = true

	base := filepath.Base(command)
	minimum, known := minVersions[base]
	if !known {
		return rt
	}

	output, err := rc.output(command, "--version")
	if err != nil {
		rt.Error = fmt.Sprintf("failed to get %s version", command)
		return rt
	}
	if m := versionPattern.FindStringSubmatch(strings.TrimSpace(string(output))); len(m) > 1 {
		rt.Version = m[1]
	}
	if rt.Version != "" && !meetsMinVersion(rt.Version, minimum) {
		rt.Error = fmt.Sprintf("%s version %s (requires >= %s)", command, rt.Version, minimum)
	}
	return rt
}

// OK reports whether the runtime can be used.
func (r *Runtime) OK() bool {
	return r.Installed && r.Error == ""
}

func meetsMinVersion(current, minimum string) bool {
	currentParts := parseVersion(current)
	minimumParts := parseVersion(minimum)

	for i := 0; i < 3; i++ {
		if currentParts[i] > minimumParts[i] {
			return true
		}
		if currentParts[i] < minimumParts[i] {
			return false
		}
	}

	return true
}

func parseVersion(version string) [3]int {
	parts := strings.Split(version, ".")
	var result [3]int

	for i := 0; i < 3 && i < len(parts); i++ {
		num, _ := strconv.Atoi(parts[i])
		result[i] = num
	}

	return result
}
