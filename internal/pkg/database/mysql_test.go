package database

import (
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDSN(t *testing.T) {
	dsn := Config{Host: "db", Port: 3306, User: "root", Password: "pw", Database: "auction"}.FormatDSN()

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "pw", parsed.Passwd)
	assert.Equal(t, "auction", parsed.DBName)
	assert.True(t, parsed.ParseTime)
}

func TestExplicitDSNWins(t *testing.T) {
	c := Config{Host: "ignored", DSN: "u:p@tcp(x:1)/y"}
	assert.Equal(t, "u:p@tcp(x:1)/y", c.FormatDSN())
}
