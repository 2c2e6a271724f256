package ops

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/stream"
)

type stubProgress struct {
	p model.BackfillProgress
}

func (s *stubProgress) Progress() model.BackfillProgress { return s.p }

type stubStreams struct {
	statuses []stream.SymbolStatus
	retried  []model.Symbol
	err      error
}

func (s *stubStreams) Status() []stream.SymbolStatus { return s.statuses }

func (s *stubStreams) RetryPrimary(symbol model.Symbol) error {
	if s.err != nil {
		return s.err
	}
	s.retried = append(s.retried, symbol)
	return nil
}

func newTestServer(progress ProgressSource, streams StreamControl) *httptest.Server {
	return httptest.NewServer(NewServer(":0", progress, streams).Handler())
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestProgressEndpoint(t *testing.T) {
	progress := &stubProgress{p: model.BackfillProgress{
		RunID:      "run-1",
		Status:     model.BackfillErrored,
		FailedKeys: []model.CellKey{{Symbol: "DOGE/USDT", Interval: model.Interval4h}},
	}}
	srv := newTestServer(progress, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/progress")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got model.BackfillProgress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, model.BackfillErrored, got.Status)
	require.Len(t, got.FailedKeys, 1)
	assert.Equal(t, model.Symbol("DOGE/USDT"), got.FailedKeys[0].Symbol)
}

func TestStreamStatusEndpoint(t *testing.T) {
	streams := &stubStreams{statuses: []stream.SymbolStatus{
		{Symbol: "BTC/USDT", Source: stream.SourceREST, ErrorCount: 2},
	}}
	srv := newTestServer(nil, streams)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stream/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []stream.SymbolStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, stream.SourceREST, got[0].Source)
}

func TestRetryPrimaryEndpoint(t *testing.T) {
	streams := &stubStreams{}
	srv := newTestServer(nil, streams)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/stream/retry-primary?symbol=btc/usdt", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, streams.retried, 1)
	assert.Equal(t, model.Symbol("BTC/USDT"), streams.retried[0], "symbol normalized to canonical form")

	// GET is not allowed on the command route.
	resp, err = http.Get(srv.URL + "/stream/retry-primary?symbol=BTC/USDT")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRetryPrimaryErrors(t *testing.T) {
	srv := newTestServer(nil, &stubStreams{err: errors.New("unknown symbol")})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/stream/retry-primary?symbol=XRP/USDT", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/stream/retry-primary?symbol=notasymbol", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
