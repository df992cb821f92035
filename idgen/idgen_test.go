package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/versioned/config"
)

func TestSnowflakeIDsAreUniqueAndIncreasing(t *testing.T) {
	g, err := NewGenerator(config.SnowflakeConfig{MachineID: 3})
	require.NoError(t, err)

	prev := int64(0)
	seen := make(map[int64]struct{}, 1000)
	for range 1000 {
		id := g.Generate()
		assert.Greater(t, id, prev)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestNewGeneratorRejectsBadConfig(t *testing.T) {
	_, err := NewGenerator(config.SnowflakeConfig{Type: "uuid"})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = NewGenerator(config.SnowflakeConfig{Type: "sonyflake", MachineID: 70000})
	assert.ErrorIs(t, err, ErrInvalidMachineID)

	_, err = NewGenerator(config.SnowflakeConfig{StartTime: "yesterday"})
	assert.ErrorIs(t, err, ErrParseTime)
}
