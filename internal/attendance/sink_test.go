package attendance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/domain"
)

func TestHTTPSink_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.True(t, Verify("test-secret", body, r.Header.Get("X-Signature")))

		var payload batchPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Len(t, payload.Records, 2)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewHTTPSink(HTTPSinkConfig{URL: server.URL, Secret: "test-secret"})
	err := sink.Send(context.Background(), domainRecords(2))
	require.NoError(t, err)
}

func domainRecords(n int) []domain.AttendanceRecord {
	records := make([]domain.AttendanceRecord, n)
	for i := range records {
		records[i] = testRecord()
	}
	return records
}

func TestHTTPSink_SendEmptyBatchIsNoop(t *testing.T) {
	sink := NewHTTPSink(HTTPSinkConfig{URL: "http://unused"})
	assert.NoError(t, sink.Send(context.Background(), nil))
}

func TestHTTPSink_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewHTTPSink(HTTPSinkConfig{URL: server.URL, RetryCount: 1})
	require.NoError(t, sink.Send(context.Background(), domainRecords(1)))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSink_ErrorAfterRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewHTTPSink(HTTPSinkConfig{URL: server.URL, RetryCount: 1})
	err := sink.Send(context.Background(), domainRecords(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSignature(t *testing.T) {
	payload := []byte(`{"records":[]}`)

	sig := Sign("secret", payload)
	assert.True(t, Verify("secret", payload, sig))
	assert.False(t, Verify("other", payload, sig))
	assert.False(t, Verify("secret", []byte("tampered"), sig))
}
