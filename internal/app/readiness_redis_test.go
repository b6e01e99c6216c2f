package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okPing struct{}

func (okPing) Err() error { return nil }

type errPing struct{ err error }

func (e errPing) Err() error { return e.err }

type fakeRedis struct {
	ok  bool
	err error
}

func (f fakeRedis) Ping(context.Context) RedisPingResult {
	if f.ok {
		return okPing{}
	}
	return errPing{err: f.err}
}

func TestBuildReadinessCheck(t *testing.T) {
	assert.Nil(t, BuildReadinessCheck(nil))

	check := BuildReadinessCheck(fakeRedis{ok: true})
	require.NotNil(t, check)
	require.NoError(t, check(context.Background()))

	check = BuildReadinessCheck(fakeRedis{err: context.DeadlineExceeded})
	err := check(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "redis ping")
}
