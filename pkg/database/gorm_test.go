package database

import (
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	c := &Config{Host: "db", User: "chat", Password: "secret", Database: "relay"}
	assert.Equal(t,
		"host=db port=5432 user=chat password=secret dbname=relay sslmode=disable TimeZone=UTC",
		c.DSN())

	c.Source = "postgres://chat@db/relay"
	assert.Equal(t, "postgres://chat@db/relay", c.DSN())
}

func TestConfig_WithDefaults(t *testing.T) {
	c := (&Config{MaxOpenConns: 7}).withDefaults()
	assert.Equal(t, 10, c.MaxIdleConns)
	assert.Equal(t, 7, c.MaxOpenConns)
	assert.NotZero(t, c.PingTimeout)
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	_, err := NewDB(&Config{Driver: "mysql"}, log.DefaultLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
