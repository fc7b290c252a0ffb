package model

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeFields() map[string]string {
	return map[string]string{
		FieldUser:     "root",
		FieldPassword: "s3cret",
		FieldHost:     "10.0.0.5",
		FieldDatabase: "slurm_acct_db",
	}
}

func TestDBInfoFromFields_DefaultsPort(t *testing.T) {
	info, err := DBInfoFromFields(completeFields())

	require.NoError(t, err)
	assert.Equal(t, "root", info.User())
	assert.Equal(t, "s3cret", info.Password())
	assert.Equal(t, "10.0.0.5", info.Host())
	assert.Equal(t, DefaultDBPort, info.Port())
	assert.Equal(t, "slurm_acct_db", info.Database())
	assert.False(t, info.IsZero())
}

func TestDBInfoFromFields_PublishedPort(t *testing.T) {
	fields := completeFields()
	fields[FieldPort] = "3307"

	info, err := DBInfoFromFields(fields)

	require.NoError(t, err)
	assert.Equal(t, "3307", info.Port())
}

func TestDBInfoFromFields_Missing(t *testing.T) {
	for _, key := range []string{FieldUser, FieldPassword, FieldHost, FieldDatabase} {
		t.Run("without "+key, func(t *testing.T) {
			fields := completeFields()
			delete(fields, key)

			info, err := DBInfoFromFields(fields)

			assert.True(t, info.IsZero())
			require.ErrorIs(t, err, ErrIncompleteCredentials)
			var incomplete *IncompleteCredentialsError
			require.True(t, errors.As(err, &incomplete))
			assert.Equal(t, []string{key}, incomplete.Missing)
		})

		t.Run("empty "+key, func(t *testing.T) {
			fields := completeFields()
			fields[key] = ""

			_, err := DBInfoFromFields(fields)
			assert.ErrorIs(t, err, ErrIncompleteCredentials)
		})
	}
}

func TestDBInfoFromFields_ListsEveryMissingField(t *testing.T) {
	_, err := DBInfoFromFields(map[string]string{FieldHost: "db"})

	var incomplete *IncompleteCredentialsError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{FieldUser, FieldPassword, FieldDatabase}, incomplete.Missing)
	assert.Equal(t, "incomplete database credentials: missing user, password, database", err.Error())
}

func TestDBInfo_SnapshotRoundTrip(t *testing.T) {
	tests := []map[string]string{
		completeFields(),
		{
			FieldUser:     "us=er;\"quoted\"",
			FieldPassword: "p@ss:{word}\n\twith\x00nul and ünïcödé",
			FieldHost:     "db.example.internal",
			FieldPort:     "",
			FieldDatabase: "db_info.database",
		},
	}

	for _, fields := range tests {
		info, err := DBInfoFromFields(fields)
		require.NoError(t, err)

		snapshot := info.Snapshot()
		assert.Len(t, snapshot, 5)
		for key := range snapshot {
			assert.Contains(t, key, SnapshotPrefix())
		}

		restored, err := RestoreDBInfo(snapshot)
		require.NoError(t, err)
		assert.Equal(t, info, restored)
	}
}

func TestRestoreDBInfo_Incomplete(t *testing.T) {
	info, err := DBInfoFromFields(completeFields())
	require.NoError(t, err)
	snapshot := info.Snapshot()
	delete(snapshot, "db_info.password")

	_, err = RestoreDBInfo(snapshot)

	assert.ErrorIs(t, err, ErrIncompleteCredentials)
}

func TestDBInfo_RenderContext(t *testing.T) {
	info, err := DBInfoFromFields(completeFields())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"user":     "root",
		"password": "s3cret",
		"host":     "10.0.0.5",
		"port":     "3306",
		"database": "slurm_acct_db",
	}, info.RenderContext())
}

func TestDBInfo_LogValueRedactsPassword(t *testing.T) {
	info, err := DBInfoFromFields(completeFields())
	require.NoError(t, err)

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("db info available", "db_info", info)

	out := buf.String()
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "db_info.user=root")
	assert.Contains(t, out, "db_info.database=slurm_acct_db")
}
