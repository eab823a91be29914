package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasabipesto/nice/internal/config"
	"github.com/wasabipesto/nice/internal/model"
)

// TestClientRunClaimsExecutesAndSubmitsOneField drives the full
// claim -> execute -> submit pipeline against a fake coordination
// service over base 10's [60, 70) range, a small window containing a
// known nice number (69: 69^2=4761, 69^3=328509, and the
// combined digits 4,7,6,1,3,2,8,5,0,9 cover 0-9 exactly once).
func TestClientRunClaimsExecutesAndSubmitsOneField(t *testing.T) {
	var claimed atomic.Int64
	var submitMu sync.Mutex
	var submitted model.SubmissionRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/claim/detailed", func(w http.ResponseWriter, r *http.Request) {
		if claimed.Add(1) > 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(model.ClaimResponse{
			ClaimID:    1,
			FieldID:    100,
			Base:       10,
			RangeStart: decimal.NewFromInt(60),
			RangeEnd:   decimal.NewFromInt(70),
			RangeSize:  decimal.NewFromInt(10),
		})
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		submitMu.Lock()
		defer submitMu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cli, err := New(config.ClientConfig{
		Mode:          string(model.ModeDetailed),
		Username:      "tester",
		APIBase:       srv.URL,
		Repeat:        false,
		Threads:       1,
		APIMaxRetries: 1,
	})
	require.NoError(t, err)

	require.NoError(t, cli.Run(t.Context()))

	submitMu.Lock()
	defer submitMu.Unlock()
	assert.Equal(t, int64(1), submitted.ClaimID)

	var total uint64
	for _, d := range submitted.Distribution {
		total += d.Count
	}
	assert.Equal(t, uint64(10), total, "distribution must cover every candidate in the field")

	foundNice := false
	for _, n := range submitted.Numbers {
		if n.Number.Equal(decimal.NewFromInt(69)) {
			foundNice = true
			assert.Equal(t, uint32(10), n.NumUniques)
		}
	}
	assert.True(t, foundNice, "69 is nice in base 10 and must appear in the submitted numbers")
}

// TestClientRunSurvivesNoFieldAvailable confirms a 204 claim response
// ends the run cleanly instead of erroring, since an exhausted queue
// is an ordinary operating condition, not a failure.
func TestClientRunSurvivesNoFieldAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cli, err := New(config.ClientConfig{
		Mode:          string(model.ModeNiceonly),
		APIBase:       srv.URL,
		Repeat:        false,
		Threads:       1,
		APIMaxRetries: 1,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- cli.Run(t.Context()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-t.Context().Done():
		t.Fatal("Run did not return promptly on no-content claim")
	}
}
