package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("LOCK_TTL", "")
	t.Setenv("AUDIT_WORKERS", "")
	t.Setenv("WS_ALLOWED_ORIGINS", "")

	cfg := Load()
	assert.Equal(t, LockLocal, cfg.LockBackend)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, 4, cfg.AuditWorkers)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "Redis")
	t.Setenv("LOCK_TTL", "5s")
	t.Setenv("AUDIT_WORKERS", "8")
	t.Setenv("DB_MAX_CONNS", "not-a-number")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("REDIS_ADDR", "r1:6379, r2:6379,")

	cfg := Load()
	assert.Equal(t, LockRedis, cfg.LockBackend)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, 8, cfg.AuditWorkers)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.RedisAddrs)
}
