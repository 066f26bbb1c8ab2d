package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConn is a minimal driver connection serving a single-column table
// with a fixed number of rows. It honors a trailing LIMIT clause the way
// an engine would and can be told to reject the wrapped subquery form.
type stubConn struct {
	available  int
	rejectWrap bool
	queries    []string
}

var limitPattern = regexp.MustCompile(`LIMIT (\d+)$`)

func (c *stubConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.queries = append(c.queries, query)

	if c.rejectWrap && strings.HasPrefix(query, "SELECT * FROM (") {
		return nil, errors.New(`syntax error at or near "("`)
	}

	n := c.available
	if m := limitPattern.FindStringSubmatch(query); m != nil {
		limit, err := strconv.Atoi(m[1])
		if err == nil && limit < n {
			n = limit
		}
	}
	return &stubRows{remaining: n}, nil
}

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

type stubRows struct {
	remaining int
	next      int
}

func (r *stubRows) Columns() []string { return []string{"id"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.remaining == 0 {
		return io.EOF
	}
	r.remaining--
	r.next++
	dest[0] = int64(r.next)
	return nil
}

type stubConnector struct {
	conn *stubConn
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open by DSN not supported")
}

func stubClient(conn *stubConn) *Client {
	return &Client{db: sql.OpenDB(stubConnector{conn: conn})}
}

func TestExecute_TruncatesAtLimitBoundary(t *testing.T) {
	// More rows available than the limit: the n+1 over-fetch sees the
	// extra row, reports truncation, and trims to exactly the limit.
	conn := &stubConn{available: 10}
	client := stubClient(conn)

	result, err := client.Execute(context.Background(), "SELECT id FROM t", 3)
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 3, result.RowCount)
	assert.Len(t, result.Rows, 3)
	assert.Equal(t, []string{"id"}, result.Columns)
}

func TestExecute_ExactlyLimitRowsNotTruncated(t *testing.T) {
	conn := &stubConn{available: 3}
	client := stubClient(conn)

	result, err := client.Execute(context.Background(), "SELECT id FROM t", 3)
	require.NoError(t, err)

	assert.False(t, result.Truncated)
	assert.Equal(t, 3, result.RowCount)
}

func TestExecute_OneOverLimitIsTheBoundary(t *testing.T) {
	// limit+1 rows available is the smallest truncating result.
	conn := &stubConn{available: 4}
	client := stubClient(conn)

	result, err := client.Execute(context.Background(), "SELECT id FROM t", 3)
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 3, result.RowCount)
}

func TestExecute_EmptyResultKeepsColumns(t *testing.T) {
	conn := &stubConn{available: 0}
	client := stubClient(conn)

	result, err := client.Execute(context.Background(), "SELECT id FROM t WHERE false", 10)
	require.NoError(t, err)

	assert.False(t, result.Truncated)
	assert.Zero(t, result.RowCount)
	assert.Empty(t, result.Rows)
	assert.Equal(t, []string{"id"}, result.Columns)
}

func TestExecute_FallsBackToBareLimit(t *testing.T) {
	conn := &stubConn{available: 1, rejectWrap: true}
	client := stubClient(conn)

	result, err := client.Execute(context.Background(), "SHOW server_version", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)

	require.Len(t, conn.queries, 2)
	assert.True(t, strings.HasPrefix(conn.queries[0], "SELECT * FROM ("))
	assert.Equal(t, "SHOW server_version LIMIT 6", conn.queries[1])
}

func TestExecute_OverFetchesOneRow(t *testing.T) {
	conn := &stubConn{available: 100}
	client := stubClient(conn)

	_, err := client.Execute(context.Background(), "SELECT id FROM t", 7)
	require.NoError(t, err)

	require.NotEmpty(t, conn.queries)
	assert.Equal(t, fmt.Sprintf("SELECT * FROM (SELECT id FROM t) AS pgscope_sub LIMIT %d", 8), conn.queries[0])
}

func TestExecute_StripsTrailingTerminator(t *testing.T) {
	conn := &stubConn{available: 1}
	client := stubClient(conn)

	_, err := client.Execute(context.Background(), "SELECT id FROM t;", 5)
	require.NoError(t, err)

	require.NotEmpty(t, conn.queries)
	assert.NotContains(t, conn.queries[0], ";")
}
