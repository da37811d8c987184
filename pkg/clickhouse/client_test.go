package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithDatabase("finresolve"),
		WithCredentials("svc", "p@ss"),
		WithAsyncInsert(true, false),
		WithMaxExecutionTime(30 * time.Second),
	} {
		opt(cfg)
	}

	u, err := url.Parse(BuildDSN(*cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/finresolve", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	q := u.Query()
	assert.Equal(t, "5s", q.Get("dial_timeout"))
	assert.Equal(t, "30", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Equal(t, "0", q.Get("wait_for_async_insert"))
	assert.Empty(t, q.Get("write_timeout"))
}

func TestBuildDSN_HTTP(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("ch.local")(cfg)
	WithPort(8123)(cfg)
	WithHTTP(true)(cfg)

	u, err := url.Parse(BuildDSN(*cfg))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "ch.local:8123", u.Host)
	assert.Empty(t, u.Query().Get("async_insert"))
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.ErrorContains(t, err, "host is required")
}
