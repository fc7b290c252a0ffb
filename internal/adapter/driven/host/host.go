// Package host reports facts about the machine the charm runs on.
package host

import (
	"fmt"
	"os"
	"strings"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HostInfo = (*System)(nil)

// System reads host facts from the operating system.
type System struct {
	hostname func() (string, error)
}

// NewSystem creates a System backed by os.Hostname.
func NewSystem() *System {
	return &System{hostname: os.Hostname}
}

// ShortHostname returns the host name truncated at its first dot.
func (s *System) ShortHostname() (string, error) {
	name, err := s.hostname()
	if err != nil {
		return "", fmt.Errorf("read hostname: %w", err)
	}
	short, _, _ := strings.Cut(name, ".")
	if short == "" {
		return "", fmt.Errorf("hostname %q has no short form", name)
	}
	return short, nil
}
