package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
app:
  name: gigbroker
  environment: test
database:
  postgres:
    host: localhost
    database: gigbroker
    user: gigbroker
  redis:
    address: localhost:6379
  elasticsearch:
    addresses:
      - http://localhost:9200
`

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, "gigbroker", cfg.App.Name)
	assert.Equal(t, "localhost", cfg.Database.Postgres.Host)
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, ":9090", cfg.HTTP.MetricsAddress)
	assert.Equal(t, 6, cfg.Otp.Digits)
	assert.Equal(t, 30, cfg.Otp.TTLMinutes)
	assert.Equal(t, 60, cfg.Feed.CacheTTLSeconds)
	assert.Equal(t, 50, cfg.Feed.MaxResults)
	assert.Equal(t, "jobs", cfg.Database.Elasticsearch.JobsIndex)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_MissingRequiredField(t *testing.T) {
	path := writeConfigFile(t, `
database:
  postgres:
    host: localhost
  redis:
    address: localhost:6379
`)

	_, err := LoadFromFile(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.postgres.database")
}

func TestLoadFromFile_ExplicitValuesWin(t *testing.T) {
	path := writeConfigFile(t, minimalConfig+`
http:
  address: ":8181"
otp:
  digits: 4
  ttl_minutes: 10
wage:
  minimum_cents: 500
`)

	cfg, err := LoadFromFile(path)

	require.NoError(t, err)
	assert.Equal(t, ":8181", cfg.HTTP.Address)
	assert.Equal(t, 4, cfg.Otp.Digits)
	assert.Equal(t, 10*time.Minute, cfg.Otp.OtpTTL())
	assert.Equal(t, int64(500), cfg.Wage.MinimumCents)
}

func TestGetDSN(t *testing.T) {
	pg := PostgresConfig{
		Host: "db.internal", Port: 5432, Database: "gigbroker",
		User: "svc", Password: "secret", SSLMode: "require",
	}

	assert.Equal(t,
		"host=db.internal port=5432 user=svc password=secret dbname=gigbroker sslmode=require",
		pg.GetDSN(),
	)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 10*time.Second, GetDuration(10000))
}
