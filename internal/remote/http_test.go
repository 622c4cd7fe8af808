package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmarchau/provider-atlas/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHTTPStore(url string) *HTTPStore {
	return NewHTTPStore(url, 5*time.Second, testLogger())
}

func TestHTTPStore_AddReturnsAssignedID(t *testing.T) {
	var gotBody domain.ProviderRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/providers", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"doc-42"}`)
	}))
	defer srv.Close()

	id, err := newTestHTTPStore(srv.URL).Add(context.Background(), domain.ProviderRecord{
		ID: "local-abc", CompanyName: "Depann'Express", Email: "a@x.fr", Phone: "01",
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-42", id)
	assert.Empty(t, gotBody.ID, "locally assigned ids never reach the wire")
	assert.Equal(t, "Depann'Express", gotBody.CompanyName)
}

func TestHTTPStore_GetAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/providers", r.URL.Path)
		fmt.Fprint(w, `[{"id":"doc-1","companyName":"A"},{"id":"doc-2","companyName":"B"}]`)
	}))
	defer srv.Close()

	records, err := newTestHTTPStore(srv.URL).GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "doc-1", records[0].ID)
	assert.Equal(t, "B", records[1].CompanyName)
}

func TestHTTPStore_UpdatePatchesByID(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestHTTPStore(srv.URL).Update(context.Background(), "doc-7", domain.ProviderRecord{Rate: "80"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/providers/doc-7", gotPath)
}

func TestHTTPStore_DeleteTreats404AsGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	err := newTestHTTPStore(srv.URL).Delete(context.Background(), "doc-9")
	assert.NoError(t, err, "deleting an already absent record is not an error")
}

func TestHTTPStore_ServerErrorSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestHTTPStore(srv.URL).GetAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPStore_SubscribeParsesEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/providers/events", r.URL.Path)
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: added\n")
		fmt.Fprint(w, `data: {"id":"doc-1","companyName":"A"}`+"\n\n")
		fmt.Fprint(w, "event: modified\n")
		fmt.Fprint(w, `data: {"id":"doc-1","companyName":"A2"}`+"\n\n")
		fmt.Fprint(w, "event: heartbeat\n")
		fmt.Fprint(w, `data: {}`+"\n\n")
		fmt.Fprint(w, "event: removed\n")
		fmt.Fprint(w, `data: {"id":"doc-1"}`+"\n\n")
	}))
	defer srv.Close()

	var events []ChangeEvent
	err := newTestHTTPStore(srv.URL).Subscribe(context.Background(), func(ev ChangeEvent) {
		events = append(events, ev)
	})
	require.Error(t, err, "a feed that ends without cancellation reports the break")

	require.Len(t, events, 3, "unknown event types are skipped")
	assert.Equal(t, ChangeAdded, events[0].Type)
	assert.Equal(t, "A", events[0].Record.CompanyName)
	assert.Equal(t, ChangeModified, events[1].Type)
	assert.Equal(t, "A2", events[1].Record.CompanyName)
	assert.Equal(t, ChangeRemoved, events[2].Type)
	assert.Equal(t, "doc-1", events[2].ID)
}

func TestHTTPStore_SubscribeStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newTestHTTPStore(srv.URL).Subscribe(ctx, func(ChangeEvent) {})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return after cancellation")
	}
}
