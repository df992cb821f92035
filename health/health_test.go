package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wyfcoding/versioned/config"
)

func TestRegistryRun(t *testing.T) {
	r := NewRegistry(50 * time.Millisecond)
	assert.True(t, r.Run(context.Background()).Healthy)

	r.Register("ok", func(context.Context) error { return nil })
	r.Register("down", func(context.Context) error { return errors.New("refused") })
	r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Register("nil", nil)

	rep := r.Run(context.Background())
	assert.False(t, rep.Healthy)
	assert.Equal(t, []string{"down", "ok", "slow"}, r.Names())
	assert.True(t, rep.Checks["ok"].Healthy)
	assert.Equal(t, "refused", rep.Checks["down"].Error)
	assert.False(t, rep.Checks["slow"].Healthy)
}

func TestMinioCheckerNeedsEndpoint(t *testing.T) {
	_, err := MinioChecker(config.MinioConfig{})
	assert.Error(t, err)
}

func TestRedisCheckerNilClient(t *testing.T) {
	assert.Error(t, RedisChecker(nil)(context.Background()))
}
