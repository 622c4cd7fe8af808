package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lmarchau/provider-atlas/internal/domain"
)

// HTTPStore talks to a document-collection HTTP API:
//
//	POST   {base}/providers          → {"id": "..."}
//	GET    {base}/providers          → [records]
//	PATCH  {base}/providers/{id}     merge fields
//	DELETE {base}/providers/{id}
//	GET    {base}/providers/events   server-sent change feed
type HTTPStore struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewHTTPStore creates a client for the collection at baseURL. The change
// feed uses a separate client without a timeout, since the stream is
// expected to stay open for the whole session.
func NewHTTPStore(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPStore {
	return &HTTPStore{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		logger:       logger,
	}
}

func (s *HTTPStore) Add(ctx context.Context, rec domain.ProviderRecord) (string, error) {
	rec.ID = "" // the store assigns document ids
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/providers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("add record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError("add record", resp)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode add response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("add record: store returned empty id")
	}
	return out.ID, nil
}

func (s *HTTPStore) GetAll(ctx context.Context) ([]domain.ProviderRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/providers", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("fetch collection", resp)
	}

	var records []domain.ProviderRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return records, nil
}

func (s *HTTPStore) Update(ctx context.Context, id string, rec domain.ProviderRecord) error {
	rec.ID = ""
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.baseURL+"/providers/"+id, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update record %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("update record "+id, resp)
	}
	return nil
}

func (s *HTTPStore) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/providers/"+id, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	defer resp.Body.Close()

	// 404 means already gone; deletion is idempotent.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		return statusError("delete record "+id, resp)
	}
	return nil
}

// Subscribe consumes the server-sent change feed, invoking onChange for each
// added/modified/removed event until ctx is cancelled or the stream breaks.
func (s *HTTPStore) Subscribe(ctx context.Context, onChange func(ChangeEvent)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/providers/events", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("open change feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("open change feed", resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			s.dispatch(eventType, strings.TrimSpace(strings.TrimPrefix(line, "data:")), onChange)
		case line == "":
			eventType = ""
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("change feed closed: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("change feed ended unexpectedly")
}

func (s *HTTPStore) dispatch(eventType, data string, onChange func(ChangeEvent)) {
	var t ChangeType
	switch eventType {
	case "added":
		t = ChangeAdded
	case "modified":
		t = ChangeModified
	case "removed":
		t = ChangeRemoved
	default:
		s.logger.Warn("ignoring unknown change feed event", "event", eventType)
		return
	}

	var rec domain.ProviderRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		s.logger.Warn("ignoring malformed change feed payload", "event", eventType, "error", err)
		return
	}
	if rec.ID == "" {
		s.logger.Warn("ignoring change feed payload without id", "event", eventType)
		return
	}

	onChange(ChangeEvent{Type: t, ID: rec.ID, Record: rec})
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, bytes.TrimSpace(body))
}
