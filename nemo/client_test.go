package nemo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemo-facility/nemo-app-drive/records"
)

func newTestClient(url string) *Client {
	logger, _ := test.NewNullLogger()

	return NewClient(url, "qwerty", logger, WithRateLimit(1000, 100))
}

func TestBilling(t *testing.T) {
	var query map[string]string
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		assert.Equal(t, BillingPath, rq.URL.Path)

		auth = rq.Header.Get("Authorization")
		query = map[string]string{
			"start": rq.URL.Query().Get("start"),
			"end":   rq.URL.Query().Get("end"),
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
		  {"item_id": 101, "item_type": "tool_usage", "start": "2024-03-04T09:00:00-08:00", "amount": 90.5, "validated": true},
		  {"item_id": 102, "item_type": "area_access", "start": "2024-03-05T09:00:00-08:00", "amount": 30, "validated": false, "project": null}
		]`))
	}))
	defer srv.Close()

	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.Local)

	table, err := newTestClient(srv.URL).Billing(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, "Token qwerty", auth)
	assert.Equal(t, map[string]string{"start": "03/01/2024", "end": "03/31/2024"}, query)
	assert.Equal(t, []string{"item_id", "item_type", "start", "amount", "validated", "project"}, table.Header)
	assert.Equal(t, []records.Record{
		{"101", "tool_usage", "2024-03-04T09:00:00-08:00", "90.5", "True", ""},
		{"102", "area_access", "2024-03-05T09:00:00-08:00", "30", "False", ""},
	}, table.Records)
}

func TestBillingWithHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Billing(context.Background(), time.Now(), time.Now())

	var status *StatusError
	require.True(t, errors.As(err, &status), "expected StatusError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, status.StatusCode)
	assert.Equal(t, "invalid token", status.Message)
}

func TestBillingWithInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		w.Write([]byte(`{"detail": "not a list"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Billing(context.Background(), time.Now(), time.Now())

	assert.Error(t, err)
}

func TestMissingToken(t *testing.T) {
	client := NewClient("http://localhost", "", nil)

	_, err := client.Users(context.Background())

	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).Tools(ctx)

	assert.Error(t, err)
}

func TestEndpoints(t *testing.T) {
	paths := []string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		paths = append(paths, rq.URL.Path)
		w.Write([]byte(`[{"id": 1}]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL + "/")
	ctx := context.Background()

	for _, f := range []func(context.Context) (*records.Table, error){
		client.UsageEvents,
		client.Reservations,
		client.Users,
		client.Tools,
	} {
		table, err := f(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, table.Len())
	}

	assert.Equal(t, []string{UsageEventsPath, ReservationsPath, UsersPath, ToolsPath}, paths)
}

func TestDescriptor(t *testing.T) {
	tests := map[string]string{
		"https://nemo.stanford.edu/api/billing/billing_data/": "billing_data",
		"https://nemo.stanford.edu/api/billing/billing-data":  "billing_data",
		"/api/usage_events/":                                  "usage_events",
		"https://nemo.stanford.edu/":                          "data",
		"":                                                    "data",
	}

	for url, expected := range tests {
		assert.Equal(t, expected, Descriptor(url), "descriptor for %q", url)
	}
}
