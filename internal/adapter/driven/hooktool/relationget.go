// Package hooktool reads relation data through the Juju hook tools that are
// on PATH while a hook runs.
package hooktool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RelationView = (*RelationGetter)(nil)

// runFunc executes a command and returns its standard output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return out, err
}

// RelationGetter is the hook tool implementation of the RelationView port. It
// shells out to relation-get, so it only works inside a hook context.
type RelationGetter struct {
	command string
	run     runFunc
}

// NewRelationGetter creates a RelationGetter. An empty command defaults to
// "relation-get".
func NewRelationGetter(command string) *RelationGetter {
	if command == "" {
		command = "relation-get"
	}
	return &RelationGetter{command: command, run: execRun}
}

// UnitData returns all settings the unit has published on the relation. An
// empty relationID lets the hook tool use the relation of the current hook.
func (g *RelationGetter) UnitData(ctx context.Context, relationID, unit string) (map[string]string, error) {
	args := []string{"--format=json"}
	if relationID != "" {
		args = append(args, "-r", relationID)
	}
	args = append(args, "-", unit)

	out, err := g.run(ctx, g.command, args...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", g.command, strings.Join(args, " "), err)
	}

	data, err := decodeSettings(out)
	if err != nil {
		return nil, fmt.Errorf("decode %s output for %s: %w", g.command, unit, err)
	}
	return data, nil
}

// decodeSettings converts relation-get JSON output into flat string settings.
// Juju publishes strings; anything else is kept in its JSON text form.
func decodeSettings(out []byte) (map[string]string, error) {
	data := make(map[string]string)
	out = bytes.TrimSpace(out)
	if len(out) == 0 || bytes.Equal(out, []byte("null")) {
		return data, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, err
	}

	for key, value := range raw {
		if bytes.Equal(value, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			data[key] = s
			continue
		}
		data[key] = string(value)
	}
	return data, nil
}
