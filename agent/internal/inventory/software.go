package inventory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// maxCommandOutput caps what a software source may print.
const maxCommandOutput = 10 << 20

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. Standard error is folded into the returned error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &limitedBuffer{buf: &stdout, max: maxCommandOutput}
	cmd.Stderr = &limitedBuffer{buf: &stderr, max: 4096}
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// limitedBuffer drops writes past max instead of growing without bound.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

// source is one way of listing installed software.
type source struct {
	name  string
	cmd   string
	args  []string
	parse func([]byte) ([]App, error)
}

// errUnsupported is returned for platforms with no software source.
var errUnsupported = errors.New("inventory: no software source for this platform")

const windowsScript = `$regPaths = @(` +
	`'HKLM:\Software\Microsoft\Windows\CurrentVersion\Uninstall\*',` +
	`'HKLM:\Software\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall\*',` +
	`'HKCU:\Software\Microsoft\Windows\CurrentVersion\Uninstall\*',` +
	`'HKCU:\Software\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall\*');` +
	`$regApps = Get-ItemProperty -Path $regPaths -ErrorAction SilentlyContinue | ` +
	`Where-Object { $_.DisplayName } | ` +
	`Select-Object @{Name='Name';Expression={$_.DisplayName}},` +
	`@{Name='Version';Expression={$_.DisplayVersion}},` +
	`Publisher, InstallLocation,` +
	`@{Name='Source';Expression={'win32-registry'}};` +
	`$storeApps = Get-AppxPackage | ` +
	`Select-Object @{Name='Name';Expression={$_.Name}},` +
	`@{Name='Version';Expression={$_.Version}},` +
	`Publisher, PackageFamilyName,` +
	`@{Name='Source';Expression={'ms-store'}};` +
	`@($regApps) + @($storeApps) | ConvertTo-Json -Depth 4`

// sourcesFor returns the software sources for goos in preference order.
func sourcesFor(goos string) []source {
	switch goos {
	case "linux":
		return []source{
			{
				name:  "dpkg",
				cmd:   "dpkg-query",
				args:  []string{"-W", "-f=${binary:Package}\t${Version}\n"},
				parse: func(b []byte) ([]App, error) { return parseTabbed(b, "dpkg") },
			},
			{
				name:  "rpm",
				cmd:   "rpm",
				args:  []string{"-qa", "--qf", "%{NAME}\t%{VERSION}-%{RELEASE}\n"},
				parse: func(b []byte) ([]App, error) { return parseTabbed(b, "rpm") },
			},
		}
	case "darwin":
		return []source{{
			name:  "system_profiler",
			cmd:   "system_profiler",
			args:  []string{"SPApplicationsDataType", "-json"},
			parse: parseSystemProfiler,
		}}
	case "windows":
		return []source{{
			name:  "powershell",
			cmd:   "powershell",
			args:  []string{"-NoProfile", "-NonInteractive", "-Command", windowsScript},
			parse: parsePowerShell,
		}}
	}
	return nil
}

// listSoftware runs the first source for goos whose command exists.
func listSoftware(ctx context.Context, r Runner, goos string) ([]App, error) {
	sources := sourcesFor(goos)
	if len(sources) == 0 {
		return nil, errUnsupported
	}
	var lastErr error
	for _, s := range sources {
		out, err := r.Run(ctx, s.cmd, s.args...)
		if errors.Is(err, exec.ErrNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("inventory: %s: %w", s.name, err)
		}
		apps, err := s.parse(out)
		if err != nil {
			return nil, fmt.Errorf("inventory: parse %s output: %w", s.name, err)
		}
		return apps, nil
	}
	return nil, fmt.Errorf("inventory: no package manager found: %w", lastErr)
}

// parseTabbed parses "name<TAB>version" lines.
func parseTabbed(b []byte, src string) ([]App, error) {
	var apps []App
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, version, _ := strings.Cut(line, "\t")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		apps = append(apps, App{Name: name, Version: strings.TrimSpace(version), Source: src})
	}
	return apps, sc.Err()
}

// parseSystemProfiler parses `system_profiler SPApplicationsDataType -json`.
func parseSystemProfiler(b []byte) ([]App, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var doc struct {
		Apps []struct {
			Name         looseString `json:"_name"`
			Version      looseString `json:"version"`
			Path         looseString `json:"path"`
			LastModified looseString `json:"lastModified"`
		} `json:"SPApplicationsDataType"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	apps := make([]App, 0, len(doc.Apps))
	for _, a := range doc.Apps {
		if a.Name == "" {
			continue
		}
		apps = append(apps, App{
			Name:         string(a.Name),
			Version:      string(a.Version),
			Source:       "system_profiler",
			Path:         string(a.Path),
			LastModified: string(a.LastModified),
		})
	}
	return apps, nil
}

type powerShellApp struct {
	Name              looseString `json:"Name"`
	Version           looseString `json:"Version"`
	Source            looseString `json:"Source"`
	Publisher         looseString `json:"Publisher"`
	InstallLocation   looseString `json:"InstallLocation"`
	PackageFamilyName looseString `json:"PackageFamilyName"`
}

// parsePowerShell parses ConvertTo-Json output, which is an object for a
// single result and an array otherwise.
func parsePowerShell(b []byte) ([]App, error) {
	b = bytes.TrimSpace(bytes.TrimPrefix(b, []byte("\xef\xbb\xbf")))
	if len(b) == 0 {
		return nil, nil
	}
	var raw []powerShellApp
	if b[0] == '{' {
		var one powerShellApp
		if err := json.Unmarshal(b, &one); err != nil {
			return nil, err
		}
		raw = []powerShellApp{one}
	} else if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}

	apps := make([]App, 0, len(raw))
	for _, a := range raw {
		if a.Name == "" {
			continue
		}
		apps = append(apps, App{
			Name:              string(a.Name),
			Version:           string(a.Version),
			Source:            string(a.Source),
			Publisher:         string(a.Publisher),
			InstallLocation:   string(a.InstallLocation),
			PackageFamilyName: string(a.PackageFamilyName),
		})
	}
	return apps, nil
}

// looseString accepts a JSON string, number, bool or null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
	case len(b) > 0 && (b[0] == '{' || b[0] == '['):
		// Nested values (e.g. a serialized System.Version) are kept verbatim.
		*s = looseString(b)
	default:
		if _, err := strconv.ParseFloat(string(b), 64); err != nil && string(b) != "true" && string(b) != "false" {
			return fmt.Errorf("unexpected JSON value %s", b)
		}
		*s = looseString(b)
	}
	return nil
}
