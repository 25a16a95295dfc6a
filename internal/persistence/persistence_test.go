package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
)

func TestNewPostgres_WithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, pg.Pool())
	assert.ErrorIs(t, pg.Ping(context.Background()), ErrNotConfigured)
	pg.Close()

	var nilPG *Postgres
	assert.Nil(t, nilPG.Pool())
	assert.ErrorIs(t, nilPG.Ping(context.Background()), ErrNotConfigured)
}

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(config.PostgresConfig{
		DSN:            "postgres://u:p@db:5432/triage",
		MaxConns:       7,
		MinConns:       1,
		ConnMaxIdleSec: 30,
		ConnMaxLifeSec: 300,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.MaxConns)
	assert.EqualValues(t, 1, cfg.MinConns)
	assert.Equal(t, 30*time.Second, cfg.MaxConnIdleTime)
	assert.Equal(t, 5*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "triage", cfg.ConnConfig.Database)

	_, err = poolConfig(config.PostgresConfig{DSN: "postgres://u:p@db:5432/triage?pool_max_conns=lots"})
	assert.Error(t, err)
}

func TestNewRedis_WithoutAddr(t *testing.T) {
	r := NewRedis(config.RedisConfig{}, zap.NewNop())
	assert.Nil(t, r.Client())
	assert.ErrorIs(t, r.Ping(context.Background()), ErrNotConfigured)
	r.Close()
}

func TestNewRedis_BuildsClient(t *testing.T) {
	r := NewRedis(config.RedisConfig{Addr: "127.0.0.1:0", DB: 2}, zap.NewNop())
	defer r.Close()
	require.NotNil(t, r.Client())
	assert.Equal(t, 2, r.Client().Options().DB)
}
