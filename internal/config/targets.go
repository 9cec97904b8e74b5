package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/studiowebux/proxybench/internal/stresstest"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultHost is the address the app ports are reached on
const DefaultHost = "127.0.0.1"

// App is one proxied application. Only its listening ports are targeted;
// Targets lists the proxy's backends and is kept for file compatibility.
// YAML uses the same keys as the proxy's JSON.
type App struct {
	Name    string   `json:"Name" yaml:"Name"`
	Ports   []int    `json:"Ports" yaml:"Ports"`
	Targets []string `json:"Targets,omitempty" yaml:"Targets,omitempty"`
}

// File is the on-disk target configuration, shared with the proxy
type File struct {
	Host    string   `json:"Host,omitempty" yaml:"Host,omitempty"`
	Apps    []App    `json:"Apps" yaml:"Apps"`
	Servers []string `json:"Servers,omitempty" yaml:"Servers,omitempty"`
}

// LoadFile reads a target configuration. .yaml and .yml files are parsed as
// YAML and reject unknown keys, everything else as JSON with comments allowed.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config %s: %w", path, err)
		}
	}
	return &f, nil
}

// Resolve returns the targets in file order: every app port on Host, then
// the explicit servers
func (f *File) Resolve() ([]netip.AddrPort, error) {
	host := f.Host
	if host == "" {
		host = DefaultHost
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", f.Host, err)
	}

	var targets []netip.AddrPort
	for _, app := range f.Apps {
		for _, port := range app.Ports {
			if port < 1 || port > 65535 {
				return nil, fmt.Errorf("app %q: port %d out of range", app.Name, port)
			}
			targets = append(targets, netip.AddrPortFrom(addr, uint16(port)))
		}
	}

	for _, s := range f.Servers {
		t, err := stresstest.ParseTarget(s)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		targets = append(targets, t)
	}

	return targets, nil
}

// LoadTargets reads path and resolves its targets
func LoadTargets(path string) ([]netip.AddrPort, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Resolve()
}
