package model

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultDBPort is used when the credential provider does not publish a port.
const DefaultDBPort = "3306"

// Relation data keys published by the MySQL side of the relation.
const (
	FieldUser     = "user"
	FieldPassword = "password"
	FieldHost     = "host"
	FieldPort     = "port"
	FieldDatabase = "database"
)

// snapshotPrefix namespaces DBInfo keys in persisted state.
const snapshotPrefix = "db_info."

// SnapshotPrefix returns the key prefix under which DBInfo snapshots are stored.
func SnapshotPrefix() string { return snapshotPrefix }

// ErrIncompleteCredentials is matched by every *IncompleteCredentialsError.
var ErrIncompleteCredentials = errors.New("incomplete database credentials")

// IncompleteCredentialsError reports which required credential fields were
// absent or empty.
type IncompleteCredentialsError struct {
	Missing []string
}

func (e *IncompleteCredentialsError) Error() string {
	return fmt.Sprintf("incomplete database credentials: missing %s", strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrIncompleteCredentials) hold.
func (e *IncompleteCredentialsError) Is(target error) bool {
	return target == ErrIncompleteCredentials
}

// DBInfo holds the connection parameters published by the database unit.
// Fields are unexported so a value cannot be altered after construction; a
// newer relation change produces a new DBInfo.
type DBInfo struct {
	user     string
	password string
	host     string
	port     string
	database string
}

// DBInfoFromFields builds a DBInfo from published relation fields. User,
// password, host and database are required; port falls back to DefaultDBPort.
func DBInfoFromFields(fields map[string]string) (DBInfo, error) {
	var missing []string
	for _, key := range []string{FieldUser, FieldPassword, FieldHost, FieldDatabase} {
		if fields[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return DBInfo{}, &IncompleteCredentialsError{Missing: missing}
	}

	port := fields[FieldPort]
	if port == "" {
		port = DefaultDBPort
	}

	return DBInfo{
		user:     fields[FieldUser],
		password: fields[FieldPassword],
		host:     fields[FieldHost],
		port:     port,
		database: fields[FieldDatabase],
	}, nil
}

func (d DBInfo) User() string     { return d.user }
func (d DBInfo) Password() string { return d.password }
func (d DBInfo) Host() string     { return d.host }
func (d DBInfo) Port() string     { return d.port }
func (d DBInfo) Database() string { return d.database }

// IsZero reports whether d is the zero value, i.e. no credentials are known.
func (d DBInfo) IsZero() bool {
	return d == DBInfo{}
}

// Snapshot flattens d into namespaced keys for persistence. RestoreDBInfo is
// its inverse.
func (d DBInfo) Snapshot() map[string]string {
	return map[string]string{
		snapshotPrefix + FieldUser:     d.user,
		snapshotPrefix + FieldPassword: d.password,
		snapshotPrefix + FieldHost:     d.host,
		snapshotPrefix + FieldPort:     d.port,
		snapshotPrefix + FieldDatabase: d.database,
	}
}

// RestoreDBInfo rebuilds a DBInfo from a Snapshot. Values are taken verbatim;
// a snapshot that does not describe complete credentials is rejected.
func RestoreDBInfo(snapshot map[string]string) (DBInfo, error) {
	fields := make(map[string]string, 5)
	for _, key := range []string{FieldUser, FieldPassword, FieldHost, FieldPort, FieldDatabase} {
		fields[key] = snapshot[snapshotPrefix+key]
	}
	info, err := DBInfoFromFields(fields)
	if err != nil {
		return DBInfo{}, fmt.Errorf("restore db info: %w", err)
	}
	return info, nil
}

// RenderContext returns the record as template variables.
func (d DBInfo) RenderContext() map[string]any {
	return map[string]any{
		FieldUser:     d.user,
		FieldPassword: d.password,
		FieldHost:     d.host,
		FieldPort:     d.port,
		FieldDatabase: d.database,
	}
}

// LogValue implements slog.LogValuer. The password is never logged.
func (d DBInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String(FieldUser, d.user),
		slog.String(FieldHost, d.host),
		slog.String(FieldPort, d.port),
		slog.String(FieldDatabase, d.database),
	)
}
