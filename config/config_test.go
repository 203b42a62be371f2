package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/point-engine/point"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "points.db", cfg.DBPath)
	assert.Equal(t, "blocking", cfg.LockPolicy)
	assert.Equal(t, point.DefaultMaxBalance, cfg.MaxBalance)
	assert.False(t, cfg.ConsistentReads)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Minute, cfg.LockSweepInterval)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.OTelEndpoint)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("POINT_PORT", "9090")
	t.Setenv("POINT_STORAGE", "sqlite")
	t.Setenv("POINT_DB_PATH", ":memory:")
	t.Setenv("POINT_LOCK_POLICY", "try")
	t.Setenv("POINT_MAX_BALANCE", "0")
	t.Setenv("POINT_CONSISTENT_READS", "true")
	t.Setenv("POINT_STORE_LATENCY", "5ms")
	t.Setenv("POINT_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, int64(0), cfg.MaxBalance)
	assert.Equal(t, 5*time.Millisecond, cfg.StoreLatency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, point.Policy{MaxBalance: 0, LockPolicy: point.LockTry, ConsistentReads: true}, policy)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("POINT_PORT", "9090")
	t.Setenv("POINT_LOCK_POLICY", "try")

	cfg, err := Load([]string{"-port", "7000", "-lock-policy", "blocking", "-max-balance", "500"})
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "blocking", cfg.LockPolicy)
	assert.Equal(t, int64(500), cfg.MaxBalance)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad port", args: []string{"-port", "0"}},
		{name: "unknown storage", args: []string{"-storage", "redis"}},
		{name: "unknown lock policy", args: []string{"-lock-policy", "global"}},
		{name: "sqlite without path", args: []string{"-storage", "sqlite", "-db", ""}},
		{name: "negative latency", env: map[string]string{"POINT_STORE_LATENCY": "-1s"}},
		{name: "unparseable env", env: map[string]string{"POINT_PORT": "eighty"}},
		{name: "unknown flag", args: []string{"-verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Config{Port: -1, Storage: "tape", LockPolicy: "nope"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "tape")
	assert.Contains(t, err.Error(), "nope")
}
