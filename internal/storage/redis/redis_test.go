package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_Next(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewSequence(db, "")

	mock.ExpectIncr("seq:url_sequence").SetVal(1)
	mock.ExpectIncr("seq:url_sequence").SetVal(2)

	first, err := seq.Next(context.Background(), "url_sequence")
	require.NoError(t, err)
	second, err := seq.Next(context.Background(), "url_sequence")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequence_NextFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	seq := NewSequence(db, "ids")

	mock.ExpectIncr("ids:url_sequence").SetErr(errors.New("connection refused"))

	_, err := seq.Next(context.Background(), "url_sequence")
	assert.ErrorIs(t, err, links.ErrStorageUnavailable)
}

func TestSequence_NextRejectsNonPositive(t *testing.T) {
	for _, val := range []int64{0, -5} {
		db, mock := redismock.NewClientMock()
		seq := NewSequence(db, "")

		mock.ExpectIncr("seq:url_sequence").SetVal(val)

		id, err := seq.Next(context.Background(), "url_sequence")
		assert.ErrorIs(t, err, links.ErrStorageUnavailable, "value %d", val)
		assert.Zero(t, id)
	}
}

func TestFixedWindowLimiter_Incr(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewFixedWindowLimiter(db, "rl", time.Minute)
	l.now = func() time.Time { return time.Unix(600, 0) }

	mock.ExpectIncr("rl:owner:alice:10").SetVal(1)
	mock.ExpectExpire("rl:owner:alice:10", 2*time.Minute).SetVal(true)
	mock.ExpectIncr("rl:owner:alice:10").SetVal(2)

	n, err := l.Incr(context.Background(), "owner:alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = l.Incr(context.Background(), "owner:alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFixedWindowLimiter_WindowKey(t *testing.T) {
	l := NewFixedWindowLimiter(nil, "", 0)
	l.now = func() time.Time { return time.Unix(119, 0) }

	assert.Equal(t, "rate:unknown:1", l.windowKey(""))
	l.now = func() time.Time { return time.Unix(120, 0) }
	assert.Equal(t, "rate:ip:10.0.0.1:2", l.windowKey("ip:10.0.0.1"))
}
