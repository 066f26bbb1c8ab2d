package readonly

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReadOnly_AllowedStatements(t *testing.T) {
	queries := []string{
		"SELECT 1",
		"select * from users",
		"  SELECT id, name FROM accounts WHERE active = true  ",
		"WITH recent AS (SELECT * FROM orders) SELECT count(*) FROM recent",
		"EXPLAIN SELECT * FROM t",
		"SHOW server_version",
		"TABLE users",
		"VALUES (1, 2), (3, 4)",
		"FETCH ALL FROM cur",
		"SELECT * FROM t; ",
	}

	for _, q := range queries {
		assert.True(t, IsReadOnly(q), "expected read-only: %s", q)
	}
}

func TestIsReadOnly_RejectedStatements(t *testing.T) {
	queries := []string{
		"INSERT INTO t VALUES (1)",
		"UPDATE t SET x = 1",
		"DELETE FROM t",
		"DROP TABLE users",
		"CREATE TABLE t (id int)",
		"ALTER TABLE t ADD COLUMN x int",
		"TRUNCATE t",
		"GRANT ALL ON t TO public",
		"BEGIN",
		"COMMIT",
		"SET search_path TO evil",
		"VACUUM",
		"COPY t FROM '/tmp/x'",
		"CALL proc()",
		"DO $$ BEGIN DELETE FROM t; END $$",
	}

	for _, q := range queries {
		assert.False(t, IsReadOnly(q), "expected rejection: %s", q)
	}
}

func TestIsReadOnly_WriteHiddenInCTE(t *testing.T) {
	assert.False(t, IsReadOnly("WITH x AS (DELETE FROM t RETURNING 1) SELECT * FROM x"))
	assert.False(t, IsReadOnly("WITH a AS (SELECT 1), b AS (INSERT INTO t VALUES (1) RETURNING *) SELECT * FROM b"))
	assert.False(t, IsReadOnly("SELECT * FROM (SELECT 1) s WHERE EXISTS (SELECT 1 FROM x) UNION ALL SELECT * FROM y; UPDATE t SET a = 1"))
}

func TestIsReadOnly_KeywordInsideStringLiteral(t *testing.T) {
	assert.True(t, IsReadOnly("SELECT 'DROP TABLE users'"))
	assert.True(t, IsReadOnly("SELECT 'DELETE FROM t WHERE x = ''1'''"))
	assert.True(t, IsReadOnly(`SELECT "delete" FROM t`))
}

func TestIsReadOnly_KeywordInsideComment(t *testing.T) {
	assert.True(t, IsReadOnly("-- DROP TABLE users\nSELECT 1"))
	assert.True(t, IsReadOnly("/* TRUNCATE t */ SELECT 1"))
	assert.True(t, IsReadOnly("/* outer /* INSERT INTO t */ nested */ SELECT 1"))
}

func TestIsReadOnly_WriteHiddenBehindCommentTrick(t *testing.T) {
	// A comment must not be able to disguise the real first token.
	assert.False(t, IsReadOnly("/* SELECT */ DELETE FROM t"))
	assert.False(t, IsReadOnly("-- innocent\nDROP TABLE t"))
}

func TestIsReadOnly_EmptyAndWhitespace(t *testing.T) {
	assert.False(t, IsReadOnly(""))
	assert.False(t, IsReadOnly("   "))
	assert.False(t, IsReadOnly("-- just a comment"))
	assert.False(t, IsReadOnly("/* nothing here */"))
}

func TestIsReadOnly_UnknownFirstTokenRejected(t *testing.T) {
	assert.False(t, IsReadOnly("FROBNICATE the database"))
	assert.False(t, IsReadOnly("(SELECT 1)"))
}

func TestIsReadOnly_SelectIntoRejected(t *testing.T) {
	// SELECT INTO is the CREATE TABLE AS spelling, not a read.
	assert.False(t, IsReadOnly("SELECT * INTO new_table FROM users"))
	assert.False(t, IsReadOnly("SELECT id INTO TEMP scratch FROM orders"))
	assert.False(t, IsReadOnly("WITH a AS (SELECT 1) SELECT * INTO t2 FROM a"))
}

func TestIsReadOnly_ExplainAnalyzeRejected(t *testing.T) {
	// EXPLAIN ANALYZE executes the statement, so it is not read-only.
	assert.False(t, IsReadOnly("EXPLAIN ANALYZE SELECT * FROM t"))
}

func TestCheck_ReturnsReason(t *testing.T) {
	err := Check("DELETE FROM t")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DELETE")

	err = Check("")
	assert.ErrorIs(t, err, ErrEmptyStatement)
}

func TestStrip_DollarQuoting(t *testing.T) {
	stripped := Strip("SELECT $$DROP TABLE t$$")
	assert.NotContains(t, stripped, "DROP")

	stripped = Strip("SELECT $fn$DELETE FROM x$fn$ AS body")
	assert.NotContains(t, stripped, "DELETE")
	assert.Contains(t, stripped, "AS body")
}

func TestStrip_PreservesStructure(t *testing.T) {
	stripped := Strip("SELECT 'a' FROM t -- tail")
	assert.Equal(t, len("SELECT 'a' FROM t -- tail"), len(stripped))
	assert.True(t, strings.HasPrefix(stripped, "SELECT"))
	assert.Contains(t, stripped, "FROM t")
	assert.NotContains(t, stripped, "tail")
}

func TestStrip_UnterminatedLiteral(t *testing.T) {
	stripped := Strip("SELECT 'unterminated DROP TABLE t")
	assert.NotContains(t, stripped, "DROP")
}

func TestStrip_DollarParameterNotAQuote(t *testing.T) {
	// Positional parameters like $1 must survive stripping.
	stripped := Strip("SELECT * FROM t WHERE id = $1")
	assert.Contains(t, stripped, "$1")
}

func TestStrip_DigitTagIsNotADelimiter(t *testing.T) {
	// $1$ is a parameter followed by '$', not a dollar-quote opener, so
	// the text between two of them is not a quoted body.
	stripped := Strip("SELECT $1$ DROP TABLE t $1$")
	assert.Contains(t, stripped, "DROP")

	// A tag may contain digits as long as it does not start with one.
	stripped = Strip("SELECT $t1$DELETE FROM x$t1$")
	assert.NotContains(t, stripped, "DELETE")
}
