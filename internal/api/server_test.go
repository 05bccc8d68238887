package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline-data/speedfusion/internal/fusion"
)

type fakeState struct {
	est fusion.Estimate
}

func (f *fakeState) Latest() fusion.Estimate { return f.est }
func (f *fakeState) RunID() string           { return f.est.RunID }

type fakeHistory struct {
	estimates []fusion.Estimate
	err       error
}

func (f *fakeHistory) RecentEstimates(limit int) ([]fusion.Estimate, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.estimates) {
		limit = len(f.estimates)
	}
	return f.estimates[:limit], nil
}

func newTestServer(state *fakeState, history HistoryStore) *httptest.Server {
	return httptest.NewServer(NewServer(state, history).ServeMux())
}

func TestStateDefaultUnits(t *testing.T) {
	state := &fakeState{est: fusion.Estimate{RunID: "r1", Tick: 9, SpeedMps: 10.0, Source: fusion.SourceBus}}
	srv := newTestServer(state, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 10.0, got.Speed)
	assert.Equal(t, "mps", got.SpeedUnits)
	assert.Equal(t, uint64(9), got.Tick)
}

func TestStateUnitConversion(t *testing.T) {
	state := &fakeState{est: fusion.Estimate{SpeedMps: 10.0}}
	srv := newTestServer(state, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/state?units=kph")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.InDelta(t, 36.0, got.Speed, 1e-9)
}

func TestStateRejectsBadUnits(t *testing.T) {
	srv := newTestServer(&fakeState{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/state?units=knots")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStateRejectsPost(t *testing.T) {
	srv := newTestServer(&fakeState{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/state", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	history := &fakeHistory{estimates: []fusion.Estimate{
		{Tick: 3}, {Tick: 2}, {Tick: 1},
	}}
	srv := newTestServer(&fakeState{}, history)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/history?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []fusion.Estimate
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Tick)
}

func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(&fakeState{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryBadLimit(t *testing.T) {
	srv := newTestServer(&fakeState{}, &fakeHistory{})
	defer srv.Close()

	for _, q := range []string{"limit=0", "limit=abc", "limit=99999"} {
		resp, err := http.Get(srv.URL + "/history?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %q", q)
	}
}

func TestHistoryStoreError(t *testing.T) {
	srv := newTestServer(&fakeState{}, &fakeHistory{err: errors.New("disk gone")})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
