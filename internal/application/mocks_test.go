package application_test

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock implementations ---

// sequenceView returns its responses in order, repeating the last one.
type sequenceView struct {
	mu        sync.Mutex
	responses []map[string]string
	err       error
	calls     int
}

func (v *sequenceView) UnitData(_ context.Context, _, _ string) (map[string]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	if len(v.responses) == 0 {
		return map[string]string{}, nil
	}
	i := v.calls - 1
	if i >= len(v.responses) {
		i = len(v.responses) - 1
	}
	return maps.Clone(v.responses[i]), nil
}

func (v *sequenceView) set(responses ...map[string]string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.responses = responses
	v.calls = 0
}

func (v *sequenceView) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type memStore struct {
	mu      sync.Mutex
	values  map[string]string
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (s *memStore) Load(_ context.Context, prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, values map[string]string, dropPrefixes ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	for k := range s.values {
		for _, prefix := range dropPrefixes {
			if strings.HasPrefix(k, prefix) {
				delete(s.values, k)
			}
		}
	}
	maps.Copy(s.values, values)
	return nil
}

func (s *memStore) Delete(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			delete(s.values, k)
		}
	}
	return nil
}

type renderCall struct {
	Source string
	Target string
	Vars   map[string]any
}

type mockRenderer struct {
	mu    sync.Mutex
	calls []renderCall
	err   error
}

func (r *mockRenderer) Render(_ context.Context, source, target string, vars map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, renderCall{Source: source, Target: target, Vars: maps.Clone(vars)})
	return r.err
}

func (r *mockRenderer) renderCalls() []renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderCall(nil), r.calls...)
}

type fixedHost struct {
	name string
	err  error
}

func (h fixedHost) ShortHostname() (string, error) { return h.name, h.err }

var (
	_ driven.RelationView   = (*sequenceView)(nil)
	_ driven.StateStore     = (*memStore)(nil)
	_ driven.ConfigRenderer = (*mockRenderer)(nil)
	_ driven.HostInfo       = fixedHost{}
)

// mysqlData is what the MySQL charm publishes once its database is ready.
func mysqlData() map[string]string {
	return map[string]string{
		"user":            "root",
		"password":        "s3cret",
		"host":            "10.0.0.5",
		"database":        "slurm_acct_db",
		"ingress-address": "10.0.0.5",
	}
}
