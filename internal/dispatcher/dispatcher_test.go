package dispatcher

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/apiproxy/internal/proxymode"
	"github.com/dreamware/apiproxy/internal/serverscfg"
)

func creditorsMode(t *testing.T) *proxymode.Mode {
	t.Helper()
	mode, err := proxymode.FromEnv(func(k string) string {
		switch k {
		case "MIN_CREDITOR_ID":
			return "0"
		case "MAX_CREDITOR_ID":
			return "1000"
		}
		return ""
	})
	require.NoError(t, err)
	return mode
}

// TestDispatchUnknownPathReturns502 implements scenario 4.
func TestDispatchUnknownPathReturns502(t *testing.T) {
	mode := creditorsMode(t)
	cfg, _, err := serverscfg.Load([]byte("* http://only:8001/\n"))
	require.NoError(t, err)

	h := New(mode, func() *serverscfg.ServersConfig { return cfg }, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/foobar", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "The request can not be forwarded to an Web API server.\n", rec.Body.String())
}

func TestDispatchNoConfigReturns502(t *testing.T) {
	mode := creditorsMode(t)
	h := New(mode, func() *serverscfg.ServersConfig { return nil }, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/creditors/5/info", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// TestDispatchSingleServerRouting implements scenario 2.
func TestDispatchSingleServerRouting(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	mode := creditorsMode(t)
	cfg, _, err := serverscfg.Load([]byte("* " + upstream.URL + "/\n"))
	require.NoError(t, err)

	h := New(mode, func() *serverscfg.ServersConfig { return cfg }, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/creditors/5/info", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/creditors/5/info", gotPath)
}

// TestDispatchUpstreamErrorReturns502 verifies upstream transport
// failures surface as a plain-text 502.
func TestDispatchUpstreamErrorReturns502(t *testing.T) {
	mode := creditorsMode(t)
	cfg, _, err := serverscfg.Load([]byte("* http://127.0.0.1:1/\n"))
	require.NoError(t, err)

	h := New(mode, func() *serverscfg.ServersConfig { return cfg }, 200*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/creditors/5/info", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.String())
}

// TestDispatchEnumerateRewritesResponse implements the enumerate path
// through the full dispatcher, not just the enumpage package directly.
func TestDispatchEnumerateRewritesResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"type":"ObjectReferencesPage","uri":"/creditors/5/enumerate","items":[]}`))
	}))
	defer upstream.Close()

	mode := creditorsMode(t)
	// ShardKey(5) is 0xaaa07454 (bit 31 set), so /creditors/5/... routes
	// to the 1.* server, which is the live upstream here.
	cfg, _, err := serverscfg.Load([]byte("0.* http://a:8001/\n1.* " + upstream.URL + "/\n"))
	require.NoError(t, err)

	h := New(mode, func() *serverscfg.ServersConfig { return cfg }, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/creditors/5/enumerate", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "?v="+cfg.Version()))
}
