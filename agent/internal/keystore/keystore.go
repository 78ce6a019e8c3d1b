package keystore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store reads the base and user KEY=VALUE files. Either path may be empty.
type Store struct {
	BasePath string
	UserPath string
}

// New returns a Store over the given files.
func New(basePath, userPath string) *Store {
	return &Store{BasePath: basePath, UserPath: userPath}
}

// Load returns the base values overlaid with the user values. Missing files
// contribute nothing.
func (s *Store) Load() (map[string]string, error) {
	out := make(map[string]string)
	for _, p := range []string{s.BasePath, s.UserPath} {
		vals, err := readFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range vals {
			out[k] = v
		}
	}
	return out, nil
}

// Save merges updates into the user file and rewrites it. An empty value
// removes the key.
func (s *Store) Save(updates map[string]string) error {
	if s.UserPath == "" {
		return errors.New("keystore: no user file configured")
	}

	current, err := readFile(s.UserPath)
	if err != nil {
		return err
	}
	for k, v := range updates {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if v == "" {
			delete(current, k)
			continue
		}
		current[k] = v
	}

	if err := os.MkdirAll(filepath.Dir(s.UserPath), 0o700); err != nil {
		return fmt.Errorf("keystore: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.UserPath), "."+filepath.Base(s.UserPath)+".*")
	if err != nil {
		return fmt.Errorf("keystore: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if err := Encode(tmp, current); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: write %s: %w", s.UserPath, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("keystore: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.UserPath); err != nil {
		return fmt.Errorf("keystore: replace %s: %w", s.UserPath, err)
	}
	return nil
}

// Lookup returns a lookup function that consults env first and then the
// merged store values. A nil env uses os.LookupEnv.
func Lookup(values map[string]string, env func(string) (string, bool)) func(string) (string, bool) {
	if env == nil {
		env = os.LookupEnv
	}
	return func(key string) (string, bool) {
		if v, ok := env(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: open %s: %w", path, err)
	}
	defer f.Close()

	vals, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("keystore: %s: %w", path, err)
	}
	return vals, nil
}

// Parse reads KEY=VALUE lines. Blank lines, # comments and lines without '='
// are skipped; an "export " prefix and surrounding quotes are stripped.
func Parse(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = unquote(strings.TrimSpace(val))
	}
	return out, sc.Err()
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Encode writes values as sorted KEY=VALUE lines.
func Encode(w io.Writer, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bw := bufio.NewWriter(w)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%s=%s\n", k, values[k]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
