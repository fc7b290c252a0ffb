// Package render writes configuration files from brace-placeholder templates.
package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ConfigRenderer = (*Renderer)(nil)

// Renderer is the filesystem implementation of the ConfigRenderer port. The
// rendered file is written to a temporary file next to the target and
// renamed into place, so readers never observe a partial file.
type Renderer struct {
	encode func(string) (string, error)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithYAMLQuoting renders every value as a double-quoted YAML scalar, so
// values containing YAML syntax such as ": ", " #" or a leading quote survive
// intact. Templates must then place placeholders where a scalar is expected
// and must not quote them themselves.
func WithYAMLQuoting() Option {
	return func(r *Renderer) { r.encode = yamlQuote }
}

// NewRenderer creates a new Renderer. Values are substituted verbatim unless
// an Option says otherwise.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render validates vars, reads the template at source, substitutes it fully
// in memory and then replaces target with the result.
func (r *Renderer) Render(ctx context.Context, source, target string, vars map[string]any) error {
	values, err := flatten(vars)
	if err != nil {
		return err
	}
	if r.encode != nil {
		for key, v := range values {
			if values[key], err = r.encode(v); err != nil {
				return fmt.Errorf("%w: key %q: %w", driven.ErrInvalidContext, key, err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpl, err := os.ReadFile(source)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", driven.ErrMissingSource, source)
	}
	if err != nil {
		return &driven.RenderError{Template: source, Offset: -1, Reason: "read template", Err: err}
	}

	out, err := substitute(source, string(tmpl), values)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(target, strings.NewReader(out)); err != nil {
		return &driven.RenderError{Template: source, Offset: -1, Reason: "write " + target, Err: err}
	}
	return nil
}

// yamlQuote returns s as a single-line double-quoted YAML scalar.
func yamlQuote(s string) (string, error) {
	out, err := yaml.Marshal(&yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Style: yaml.DoubleQuotedStyle,
		Value: s,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}
