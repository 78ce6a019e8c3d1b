package identity

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// autoID asks for the host name.
const autoID = "auto"

// Identity is the agent's credential pair.
type Identity struct {
	AgentID  string
	AgentKey string
}

// String returns the ID with the key masked, safe for logs.
func (i Identity) String() string {
	return fmt.Sprintf("%s (key %s)", i.AgentID, MaskKey(i.AgentKey))
}

// hostname is swapped in tests.
var hostname = os.Hostname

// ResolveAgentID returns configured unless it is empty or "auto", in which
// case the host name is used.
func ResolveAgentID(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured != "" && !strings.EqualFold(configured, autoID) {
		return configured
	}
	h, err := hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

// MaskKey keeps the first and last three characters of key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "***"
	}
	return key[:3] + "***" + key[len(key)-3:]
}

// KeyValidator checks a key with the server.
type KeyValidator interface {
	Validate(ctx context.Context, key string) error
}

// Saver persists settings.
type Saver interface {
	Save(updates map[string]string) error
}

// Enroll validates key remotely and, once accepted, saves it under name
// (normally AGENT_KEY). Nothing is written when validation fails.
func Enroll(ctx context.Context, v KeyValidator, s Saver, name, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("identity: empty agent key")
	}
	if err := v.Validate(ctx, key); err != nil {
		return fmt.Errorf("identity: validate key: %w", err)
	}
	if err := s.Save(map[string]string{name: key}); err != nil {
		return fmt.Errorf("identity: save key: %w", err)
	}
	return nil
}

// Prompt asks for the agent key on out and reads it from in. When in is a
// terminal the input is not echoed.
func Prompt(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Agent key: ")

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("identity: read key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("identity: read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", errors.New("identity: no key entered")
	}
	return key, nil
}
