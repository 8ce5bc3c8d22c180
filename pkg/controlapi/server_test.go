package controlapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(t.TempDir(), "127.0.0.1:0")
	ts := httptest.NewServer(s.http.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) (*http.Response, response) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, ts *httptest.Server, path string) (*http.Response, response) {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestOperationsFailBeforeInitializeSync(t *testing.T) {
	_, ts := newTestServer(t)

	resp, decoded := getJSON(t, ts, "/get_sync_status")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.False(t, decoded.Ok)
	require.NotEmpty(t, decoded.Error)
}

func TestInitializeSyncThenGetStatus(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	resp, decoded := postJSON(t, ts, "/initialize_sync", map[string]any{
		"vault_path":     t.TempDir(),
		"encryption_key": []byte("short-key"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decoded.Ok)

	resp, decoded = getJSON(t, ts, "/get_sync_status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decoded.Ok)
	require.NotNil(t, decoded.Status)
	require.EqualValues(t, 0, decoded.Status.PeersConnected)
}

func TestGenerateTicketAndConnectPeerRoundTrip(t *testing.T) {
	t.Parallel()
	_, tsA := newTestServer(t)
	_, tsB := newTestServer(t)

	_, decoded := postJSON(t, tsA, "/initialize_sync", map[string]any{
		"vault_path":     t.TempDir(),
		"encryption_key": []byte("a-key-a-key-a-key-a-key-a-key-aa"),
	})
	require.True(t, decoded.Ok)

	_, decoded = postJSON(t, tsB, "/initialize_sync", map[string]any{
		"vault_path":     t.TempDir(),
		"encryption_key": []byte("b-key-b-key-b-key-b-key-b-key-bb"),
	})
	require.True(t, decoded.Ok)

	_, ticketResp := postJSON(t, tsB, "/generate_ticket", map[string]any{})
	require.True(t, ticketResp.Ok)
	require.NotEmpty(t, ticketResp.Ticket)

	resp, connectResp := postJSON(t, tsA, "/connect_peer", map[string]any{
		"ticket": ticketResp.Ticket,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, connectResp.Ok)

	require.Eventually(t, func() bool {
		_, statusResp := getJSON(t, tsA, "/get_sync_status")
		return statusResp.Status != nil && statusResp.Status.PeersConnected == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConnectPeerRejectsMalformedTicket(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	_, decoded := postJSON(t, ts, "/initialize_sync", map[string]any{
		"vault_path":     t.TempDir(),
		"encryption_key": []byte("some-key-material"),
	})
	require.True(t, decoded.Ok)

	resp, connectResp := postJSON(t, ts, "/connect_peer", map[string]any{
		"ticket": "not-a-real-ticket",
	})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.False(t, connectResp.Ok)
	require.NotEmpty(t, connectResp.Error)
}

func TestGetRecentActivityEmptyBeforeAnyWrites(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	_, decoded := postJSON(t, ts, "/initialize_sync", map[string]any{
		"vault_path":     t.TempDir(),
		"encryption_key": []byte("some-key-material"),
	})
	require.True(t, decoded.Ok)

	resp, activityResp := getJSON(t, ts, "/get_recent_activity")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, activityResp.Ok)
	require.Empty(t, activityResp.Activity)
}
