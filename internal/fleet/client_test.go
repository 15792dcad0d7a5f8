package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderID(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int64
		ok   bool
	}{
		{"number", `{"id":169956752581240004}`, 169956752581240004, true},
		{"string", `{"id":"169956752581240004"}`, 169956752581240004, true},
		{"padded string", `{"id":" 42 "}`, 42, true},
		{"missing", `{"status":"ok"}`, 0, false},
		{"null", `{"id":null}`, 0, false},
		{"fraction", `{"id":1.5}`, 0, false},
		{"text", `{"id":"abc"}`, 0, false},
		{"not json", `accepted`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := ParseOrderID([]byte(tc.body))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestBeginMove(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/workflow/501", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":77}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/"})
	id, err := c.BeginMove(context.Background(), "A", "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.Equal(t, map[string]string{"@ROW": "A", "@TABLE": "T1"}, got)
}

func TestBeginMoveWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL, WorkflowID: 9}).BeginMove(context.Background(), "A", "T1")
	assert.True(t, errors.Is(err, ErrNoOrderID))
}

func TestBeginMoveHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL}).BeginMove(context.Background(), "A", "T1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoOrderID))
}

func TestBeginMoveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}).BeginMove(context.Background(), "A", "T1")
	assert.Error(t, err)
}

func TestCancelOrder(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
	}))
	defer srv.Close()

	require.NoError(t, NewClient(Options{BaseURL: srv.URL}).CancelOrder(context.Background(), 12))
	assert.Equal(t, "/order/12/cancel", path)
}

func TestParseID(t *testing.T) {
	id, ok := ParseID(json.RawMessage(`"  42 "`))
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	_, ok = ParseID(nil)
	assert.False(t, ok)
	_, ok = ParseID(json.RawMessage(`1.5`))
	assert.False(t, ok)
}
