package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/slurmdbd-charm/internal/application"
	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/model"
	"github.com/ericfisherdev/slurmdbd-charm/internal/domain/port/driven"
)

type awaitResult struct {
	fields map[string]string
	err    error
}

func TestAwaitComplete_PollsUntilPublished(t *testing.T) {
	view := &sequenceView{responses: []map[string]string{
		{},
		{},
		{"user": "root", "password": "s3cret", "host": "10.0.0.5", "database": "slurm_acct_db"},
	}}
	clk := testclock.NewClock(time.Now())
	reader := application.NewRelationReader(view, clk, time.Second, 0, discardLogger())

	resC := make(chan awaitResult, 1)
	go func() {
		fields, err := reader.AwaitComplete(context.Background(), "db:1", "mysql/0")
		resC <- awaitResult{fields: fields, err: err}
	}()

	for range 2 {
		require.NoError(t, clk.WaitAdvance(time.Second, 5*time.Second, 1))
	}

	var res awaitResult
	select {
	case res = <-resC:
	case <-time.After(5 * time.Second):
		t.Fatal("AwaitComplete did not return after data was published")
	}

	require.NoError(t, res.err)
	assert.Equal(t, 3, view.callCount())
	assert.Equal(t, map[string]string{
		"user":     "root",
		"password": "s3cret",
		"host":     "10.0.0.5",
		"port":     "3306",
		"database": "slurm_acct_db",
	}, res.fields)

	info, err := model.DBInfoFromFields(res.fields)
	require.NoError(t, err)
	assert.Equal(t, "3306", info.Port())
}

func TestAwaitComplete_ImmediateData(t *testing.T) {
	data := mysqlData()
	data["port"] = "3307"
	view := &sequenceView{responses: []map[string]string{data}}
	reader := application.NewRelationReader(view, clock.WallClock, time.Hour, 0, discardLogger())

	fields, err := reader.AwaitComplete(context.Background(), "db:1", "mysql/0")
	require.NoError(t, err)
	assert.Equal(t, "3307", fields["port"])
	assert.NotContains(t, fields, "ingress-address")
	assert.Equal(t, 1, view.callCount())
}

func TestAwaitComplete_PartialDataIsReturned(t *testing.T) {
	view := &sequenceView{responses: []map[string]string{{"user": "root", "host": "10.0.0.5"}}}
	reader := application.NewRelationReader(view, clock.WallClock, time.Hour, 0, discardLogger())

	fields, err := reader.AwaitComplete(context.Background(), "db:1", "mysql/0")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"user": "root", "host": "10.0.0.5", "port": "3306"}, fields)

	_, err = model.DBInfoFromFields(fields)
	assert.ErrorIs(t, err, model.ErrIncompleteCredentials)
}

func TestAwaitComplete_Timeout(t *testing.T) {
	view := &sequenceView{}
	reader := application.NewRelationReader(view, clock.WallClock, time.Millisecond, 20*time.Millisecond, discardLogger())

	_, err := reader.AwaitComplete(context.Background(), "db:1", "mysql/0")
	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrRelationDataTimeout)
	assert.Greater(t, view.callCount(), 1)
}

func TestAwaitComplete_Cancelled(t *testing.T) {
	view := &sequenceView{}
	reader := application.NewRelationReader(view, clock.WallClock, 5*time.Millisecond, 0, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := reader.AwaitComplete(ctx, "db:1", "mysql/0")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitComplete_ReadErrorIsFatal(t *testing.T) {
	boom := errors.New("relation-get: permission denied")
	view := &sequenceView{err: boom}
	reader := application.NewRelationReader(view, clock.WallClock, time.Millisecond, 0, discardLogger())

	_, err := reader.AwaitComplete(context.Background(), "db:1", "mysql/0")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, view.callCount())
}

func TestPeek(t *testing.T) {
	view := &sequenceView{responses: []map[string]string{{}, mysqlData()}}
	reader := application.NewRelationReader(view, clock.WallClock, time.Second, 0, discardLogger())
	ctx := context.Background()

	_, err := reader.Peek(ctx, "db:1", "mysql/0")
	assert.ErrorIs(t, err, driven.ErrRelationDataPending)

	fields, err := reader.Peek(ctx, "db:1", "mysql/0")
	require.NoError(t, err)
	assert.Equal(t, "root", fields["user"])
	assert.Equal(t, "3306", fields["port"])
}
