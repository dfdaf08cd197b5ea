package database

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qs3c/dieta_server/config"
)

func TestDSN(t *testing.T) {
	base := config.DatabaseConfig{
		Host: "db", Port: 3306, Username: "root", Password: "pw", Database: "dieta",
	}

	t.Run("mysql default", func(t *testing.T) {
		dsn, err := DSN(&base)
		require.NoError(t, err)
		assert.Equal(t, "root:pw@tcp(db:3306)/dieta?charset=utf8mb4&parseTime=True&loc=Local", dsn)
	})

	t.Run("postgres", func(t *testing.T) {
		cfg := base
		cfg.Driver = "postgres"
		cfg.Port = 5432
		dsn, err := DSN(&cfg)
		require.NoError(t, err)
		assert.Contains(t, dsn, "host=db port=5432")
		assert.Contains(t, dsn, "dbname=dieta")
	})

	t.Run("explicit dsn wins", func(t *testing.T) {
		cfg := base
		cfg.DSN = "custom"
		dsn, err := DSN(&cfg)
		require.NoError(t, err)
		assert.Equal(t, "custom", dsn)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := base
		cfg.Driver = "oracle"
		_, err := DSN(&cfg)
		assert.Error(t, err)
	})
}

func TestMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable("user_profiles"))
	assert.True(t, db.Migrator().HasTable("webhook_events"))
	assert.True(t, db.Migrator().HasTable("fulfillment_audits"))
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	rdb, err := NewRedis(&config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	defer rdb.Close()

	mr.Close()
	_, err = NewRedis(&config.RedisConfig{Host: mr.Host(), Port: port})
	assert.Error(t, err)
}
