package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"pgscope/internal/config"
)

func TestBuildDSN_Basic(t *testing.T) {
	spec := &config.ConnectionSpec{
		Host:     "db.internal",
		Port:     5433,
		User:     "reader",
		Password: "s3cret",
		Database: "appdb",
	}

	dsn := buildDSN(spec)

	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "port=5433")
	assert.Contains(t, dsn, "user=reader")
	assert.Contains(t, dsn, "password=s3cret")
	assert.Contains(t, dsn, "dbname=appdb")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "connect_timeout=10")
}

func TestBuildDSN_QuotesSpecialCharacters(t *testing.T) {
	spec := &config.ConnectionSpec{
		Host:     "localhost",
		Port:     5432,
		User:     "reader",
		Password: "p@ss word's",
		Database: "appdb",
	}

	dsn := buildDSN(spec)

	assert.Contains(t, dsn, `password='p@ss word\'s'`)
}

func TestBuildDSN_OmitsEmptyFields(t *testing.T) {
	spec := &config.ConnectionSpec{Host: "localhost", Port: 5432}

	dsn := buildDSN(spec)

	assert.NotContains(t, dsn, "user=")
	assert.NotContains(t, dsn, "password=")
	assert.NotContains(t, dsn, "dbname=")
}

func TestBuildDSN_TLSModes(t *testing.T) {
	base := config.ConnectionSpec{Host: "localhost", Port: 5432}

	opportunistic := base
	opportunistic.TLS = config.TLSConfig{Mode: config.TLSOpportunistic}
	assert.Contains(t, buildDSN(&opportunistic), "sslmode=require")

	verified := base
	verified.TLS = config.TLSConfig{
		Mode:     config.TLSVerified,
		CAFile:   "/certs/ca.pem",
		CertFile: "/certs/client.pem",
		KeyFile:  "/certs/client-key.pem",
	}
	dsn := buildDSN(&verified)
	assert.Contains(t, dsn, "sslmode=verify-full")
	assert.Contains(t, dsn, "sslrootcert=/certs/ca.pem")
	assert.Contains(t, dsn, "sslcert=/certs/client.pem")
	assert.Contains(t, dsn, "sslkey=/certs/client-key.pem")
}

func TestBuildDSN_NoTLSMaterialWhenDisabled(t *testing.T) {
	spec := &config.ConnectionSpec{
		Host: "localhost",
		Port: 5432,
		TLS:  config.TLSConfig{Mode: config.TLSDisabled, CAFile: "/certs/ca.pem"},
	}

	assert.NotContains(t, buildDSN(spec), "sslrootcert")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, MaxRows, clampLimit(0))
	assert.Equal(t, MaxRows, clampLimit(-5))
	assert.Equal(t, 100, clampLimit(100))
	assert.Equal(t, MaxRows, clampLimit(MaxRows))
	assert.Equal(t, MaxRows, clampLimit(MaxRows+1))
	assert.Equal(t, MaxRows, clampLimit(1_000_000))
}

func TestStripTerminator(t *testing.T) {
	assert.Equal(t, "SELECT 1", stripTerminator("SELECT 1;"))
	assert.Equal(t, "SELECT 1", stripTerminator("  SELECT 1 ;  "))
	assert.Equal(t, "SELECT 1", stripTerminator("SELECT 1"))
	// Only a single trailing terminator is removed.
	assert.Equal(t, "SELECT 1;", stripTerminator("SELECT 1;;"))
}

func TestWrapQuery(t *testing.T) {
	wrapped := wrapQuery("SELECT a FROM t ORDER BY a", 11)
	assert.Equal(t, "SELECT * FROM (SELECT a FROM t ORDER BY a) AS pgscope_sub LIMIT 11", wrapped)
}

func TestAppendLimit(t *testing.T) {
	assert.Equal(t, "SHOW server_version LIMIT 11", appendLimit("SHOW server_version", 11))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "text", normalizeValue([]byte("text")))
	assert.Equal(t, int64(42), normalizeValue(int64(42)))
	assert.Nil(t, normalizeValue(nil))
}

func TestQuoteDSNValue(t *testing.T) {
	assert.Equal(t, "plain", quoteDSNValue("plain"))
	assert.Equal(t, "'two words'", quoteDSNValue("two words"))
	assert.Equal(t, `'it\'s'`, quoteDSNValue("it's"))
	assert.Equal(t, `'back\\slash'`, quoteDSNValue(`back\slash`))
}

func TestSSLMode(t *testing.T) {
	assert.Equal(t, "disable", sslMode(config.TLSConfig{Mode: config.TLSDisabled}))
	assert.Equal(t, "require", sslMode(config.TLSConfig{Mode: config.TLSOpportunistic}))
	assert.Equal(t, "verify-full", sslMode(config.TLSConfig{Mode: config.TLSVerified}))
}

func TestListSchemasSQL_ExcludesSystemSchemas(t *testing.T) {
	// Guard the query text itself; there is no live catalog in unit tests.
	for _, sys := range []string{"pg_catalog", "information_schema", "pg_toast"} {
		assert.True(t, strings.Contains(listSchemasSQL, sys))
	}
}
