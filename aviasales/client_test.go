package aviasales

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-token", "rub", 10, 5*time.Second)
	c.baseURL = srv.URL
	return c
}

func TestMinFarePicksCheapestPricedEntry(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "rub", q.Get("currency"))
		assert.Equal(t, "MOW", q.Get("origin"))
		assert.Equal(t, "AER", q.Get("destination"))
		assert.Equal(t, "test-token", q.Get("token"))
		assert.Equal(t, "10", q.Get("limit"))

		w.Write([]byte(`{"success":true,"data":[
			{"value":7200,"airline":"SU"},
			{"airline":"S7"},
			{"value":5600,"airline":"DP"}
		]}`))
	})

	price, err := c.MinFare(context.Background(), "MOW", "AER")
	require.NoError(t, err)
	assert.Equal(t, 5600.0, price)
}

func TestMinFareNoUsableEntries(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[{"airline":"SU"}]}`))
	})

	_, err := c.MinFare(context.Background(), "MOW", "AER")
	assert.ErrorIs(t, err, ErrNoFares)
}

func TestMinFareAPIReportsFailure(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"token is invalid"}`))
	})

	_, err := c.MinFare(context.Background(), "MOW", "PEK")
	assert.ErrorIs(t, err, ErrNoFares)
}

func TestMinFareHTTPError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.MinFare(context.Background(), "MOW", "PEK")
	assert.Error(t, err)
}

func TestMinFareMalformedBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	_, err := c.MinFare(context.Background(), "MOW", "PEK")
	assert.Error(t, err)
}
