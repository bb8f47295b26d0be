package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-game-bot/internal/config"
)

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{
		Host: "db", Port: 5433, User: "quiz", Password: "secret", Name: "quiz",
		PoolSize:       8,
		ConnectTimeout: 3 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.EqualValues(t, 5433, pc.ConnConfig.Port)
	assert.EqualValues(t, 8, pc.MaxConns)
	assert.EqualValues(t, 2, pc.MinConns)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
}

func TestPoolConfig_SmallPool(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Name: "n", PoolSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 1, pc.MinConns)
}
