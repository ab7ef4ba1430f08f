package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/clausewitz/internal/config"
	"github.com/standardbeagle/clausewitz/internal/custodian"
	"github.com/standardbeagle/clausewitz/internal/extractor"
)

func startTestServer(t *testing.T) (*Server, *custodian.Custodian) {
	t.Helper()
	cust := custodian.New(&config.Config{
		History: config.History{MaxSnapshotsPerCampaign: 10},
		Ingest:  config.Ingest{QueueSize: 8},
	})
	s := New(&config.Config{Server: config.Server{Addr: "127.0.0.1:0"}}, cust)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		cust.Close()
	})
	return s, cust
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestServer_Healthz__returnsOK(t *testing.T) {
	s, _ := startTestServer(t)

	var body healthzResponse
	resp := getJSON(t, fmt.Sprintf("http://%s/healthz", s.Addr()), &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)
}

func TestServer_Campaigns__listsIngestedCampaigns(t *testing.T) {
	s, cust := startTestServer(t)
	cust.Ingest(extractor.Snapshot{CampaignName: "Eat My Shorts"}, "")

	var body []custodian.CampaignSummary
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/campaigns", s.Addr()))
		require.NoError(t, err)
		defer resp.Body.Close()
		body = nil
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return len(body) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "Eat My Shorts", body[0].Name)
}

func TestServer_CampaignLatest__returns404ForUnknownCampaign(t *testing.T) {
	s, _ := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/campaigns/does-not-exist/latest", s.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CampaignLatest__returnsMostRecentSnapshot(t *testing.T) {
	s, cust := startTestServer(t)
	cust.Ingest(extractor.Snapshot{CampaignName: "Eat My Shorts", RequiredContentPacks: []string{"Apocalypse"}}, "")

	var snap extractor.Snapshot
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/campaigns/%s/latest", s.Addr(), url.PathEscape("Eat My Shorts")))
		require.NoError(t, err)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		return json.NewDecoder(resp.Body).Decode(&snap) == nil && snap.CampaignName != ""
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"Apocalypse"}, snap.RequiredContentPacks)
}

func TestServer_CampaignHistory__returnsEmptySliceForUnknownCampaign(t *testing.T) {
	s, _ := startTestServer(t)

	var hist []extractor.Snapshot
	resp := getJSON(t, fmt.Sprintf("http://%s/campaigns/does-not-exist/history", s.Addr()), &hist)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, hist)
}

func TestServer_UnknownSubroute__returns404(t *testing.T) {
	s, _ := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/campaigns/foo/unknown-action", s.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_StartTwice__isError(t *testing.T) {
	s, _ := startTestServer(t)
	assert.Error(t, s.Start())
}
