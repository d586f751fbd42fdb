package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChecker(retries int) *Checker {
	return NewChecker(&http.Client{Timeout: time.Second}, retries, time.Millisecond)
}

func TestCheckAccessibleBelow500(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusNotFound} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		res := newTestChecker(2).Check(context.Background(), server.URL)
		assert.True(t, res.Accessible, "status %d", status)
		assert.Equal(t, status, res.StatusCode)
		assert.Equal(t, 1, res.Attempts)
		assert.NoError(t, res.Err)

		server.Close()
	}
}

func TestCheckRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	res := newTestChecker(3).Check(context.Background(), server.URL)
	assert.True(t, res.Accessible)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCheckGivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	res := newTestChecker(2).Check(context.Background(), server.URL)
	assert.False(t, res.Accessible)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	require.Error(t, res.Err)
}

func TestCheckAllAndCount(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	results := newTestChecker(0).CheckAll(context.Background(), []string{up.URL, down.URL})
	require.Len(t, results, 2)
	assert.Equal(t, 1, CountAccessible(results))
	assert.True(t, results[0].Accessible)
	assert.False(t, results[1].Accessible)
}
