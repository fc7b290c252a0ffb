// Package relationfile serves relation data from a YAML file, for hosts where
// the credential provider is not reachable through Juju hook tools.
//
// The file maps unit names to their published settings:
//
//	mysql/0:
//	  user: root
//	  password: s3cret
//	  host: 10.0.0.5
//	  database: slurm_acct_db
package relationfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RelationView = (*View)(nil)

// View is the file implementation of the RelationView port. The file is
// re-read on every call so external writers are picked up without a restart.
type View struct {
	path string
}

// NewView creates a View over the YAML file at path.
func NewView(path string) *View {
	return &View{path: path}
}

// Path returns the file backing the view.
func (v *View) Path() string {
	return v.path
}

// UnitData returns the settings published by unit. The relation ID is not
// used: a file describes a single relation.
func (v *View) UnitData(ctx context.Context, _ string, unit string) (map[string]string, error) {
	units, err := v.read(ctx)
	if err != nil {
		return nil, err
	}
	data := units[unit]
	if data == nil {
		data = map[string]string{}
	}
	return data, nil
}

// Units returns the names of all units present in the file.
func (v *View) Units(ctx context.Context) ([]string, error) {
	units, err := v.read(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	return names, nil
}

func (v *View) read(ctx context.Context) (map[string]map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(v.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read relation file: %w", err)
	}

	units := make(map[string]map[string]string)
	if err := yaml.Unmarshal(raw, &units); err != nil {
		return nil, fmt.Errorf("parse relation file %s: %w", v.path, err)
	}
	return units, nil
}
