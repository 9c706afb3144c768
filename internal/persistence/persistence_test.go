package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/auth-service/internal/config"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	r := NewRedis(ctx, config.RedisConfig{Addr: mr.Addr(), UserCacheSeconds: 60}, zap.NewNop())
	t.Cleanup(r.Close)

	require.NotNil(t, r.Client)
	assert.True(t, r.Available())
	assert.NoError(t, r.Ping(ctx))

	mr.Close()
	assert.Error(t, r.Ping(ctx))
}

func TestNewRedis_UnreachableDisablesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	core, logs := observer.New(zap.WarnLevel)
	r := NewRedis(context.Background(), config.RedisConfig{Addr: addr}, zap.New(core))
	t.Cleanup(r.Close)

	assert.NotNil(t, r.Client)
	assert.False(t, r.Available())
	assert.Equal(t, 1, logs.FilterMessage("user cache disabled; redis unreachable").Len())
}

func TestRedis_NotConfigured(t *testing.T) {
	r := NewRedis(context.Background(), config.RedisConfig{}, zap.NewNop())
	assert.Nil(t, r.Client)
	assert.False(t, r.Available())
	assert.Error(t, r.Ping(context.Background()))

	var nilRedis *Redis
	assert.False(t, nilRedis.Available())
	assert.Error(t, nilRedis.Ping(context.Background()))
	nilRedis.Close()
}

func TestPostgres_NotConfigured(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, pg.Configured())
	assert.Nil(t, pg.PoolHandle())
	assert.ErrorIs(t, pg.Ping(context.Background()), ErrStoreNotConfigured)
	pg.Close()

	assert.NoError(t, RunMigrations(context.Background(), nil, "does-not-exist", zap.NewNop()))
}

func TestNewPostgres_InvalidDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{DSN: "postgres://%zz"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse POSTGRES_DSN")
}

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700))

	names, err := MigrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, names)

	_, err = MigrationFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	repoMigrations, err := MigrationFiles(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	assert.Contains(t, repoMigrations, "001_create_users.sql")
}
