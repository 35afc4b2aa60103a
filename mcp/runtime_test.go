package mcp

import (
	"errors"
	"testing"

	"spritebot/config"
)

func fakeChecker(paths map[string]string, versions map[string]string) *RuntimeChecker {
	rc := NewRuntimeChecker()
	rc.lookPath = func(file string) (string, error) {
		if p, ok := paths[file]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
	rc.output = func(name string, args ...string) ([]byte, error) {
		v, ok := versions[name]
		if !ok {
			return nil, errors.New("exit status 1")
		}
		return []byte(v), nil
	}
	return rc
}

func TestRuntimeCheck(t *testing.T) {
	rc := fakeChecker(
		map[string]string{"node": "/usr/bin/node", "python3": "/usr/bin/python3", "uvx": "/usr/local/bin/uvx", "python": "/usr/bin/python"},
		map[string]string{"node": "v20.11.1\n", "python3": "Python 3.8.10\n"},
	)

	tests := []struct {
		command string
		ok      bool
		version string
	}{
		{"node", true, "20.11.1"},
		{"python3", false, "3.8.10"},
		{"uvx", true, ""},
		{"python", false, ""},
		{"deno", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			rt := rc.Check(tt.command)
			if rt.OK() != tt.ok {
				t.Errorf("OK() = %v, want %v (error %q)", rt.OK(), tt.ok, rt.Error)
			}
			if rt.Version != tt.version {
				t.Errorf("Version = %q, want %q", rt.Version, tt.version)
			}
		})
	}
}

func TestPreflightDedupesCommands(t *testing.T) {
	calls := 0
	rc := fakeChecker(map[string]string{"node": "/usr/bin/node"}, map[string]string{"node": "v18.19.0"})
	inner := rc.lookPath
	rc.lookPath = func(file string) (string, error) {
		calls++
		return inner(file)
	}

	got := rc.Preflight([]config.ToolProviderConfig{
		{Name: "pixellab", Command: "node"},
		{Name: "xai-image", Command: "node"},
	})
	if len(got) != 1 || !got[0].OK() {
		t.Fatalf("Preflight = %+v", got)
	}
	if calls != 1 {
		t.Errorf("lookPath called %d times", calls)
	}
}

func TestMeetsMinVersion(t *testing.T) {
	tests := []struct {
		current, minimum string
		want             bool
	}{
		{"18.0.0", "18.0.0", true},
		{"20.1", "18.0.0", true},
		{"3.9.18", "3.10.0", false},
		{"3.12.1", "3.10.0", true},
	}
	for _, tt := range tests {
		if got := meetsMinVersion(tt.current, tt.minimum); got != tt.want {
			t.Errorf("meetsMinVersion(%s, %s) = %v", tt.current, tt.minimum, got)
		}
	}
}
