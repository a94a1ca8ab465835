package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const backendStorageAPI = "storage_api"

// storageEvent is the storage service's event resource. Content is base64.
type storageEvent struct {
	ID      int64  `json:"id,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Content string `json:"content"`
}

// StorageAPIStore talks to the external storage service over REST.
type StorageAPIStore struct {
	client    *retryablehttp.Client
	endpoint  string
	opTimeout time.Duration
}

// NewStorageAPIStore builds a retrying client for the storage service.
func NewStorageAPIStore(cfg config.StorageAPIConfig, opTimeout time.Duration) *StorageAPIStore {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = retryLogger{logger: log.With().Str("component", "storage_api").Logger()}
	client.CheckRetry = checkRetry

	return &StorageAPIStore{
		client:    client,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		opTimeout: opTimeout,
	}
}

type sendOnceKey struct{}

// checkRetry never retries a request whose context is marked send-once.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Value(sendOnceKey{}) != nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (s *StorageAPIStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *StorageAPIStore) eventURL(eventID string) string {
	return s.endpoint + "/events/" + url.PathEscape(eventID)
}

// do sends the request and decodes a JSON body into out when non-nil. It
// returns the status code so callers can treat 404 themselves.
func (s *StorageAPIStore) do(ctx context.Context, method, rawURL string, body, out interface{}) (int, error) {
	var payload interface{}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, "encode request")
		}
		payload = b
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, errors.Errorf("%s %s: unexpected status %d: %s",
			method, rawURL, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "decode response")
		}
	}
	return resp.StatusCode, nil
}

// Insert creates or replaces the remote event
func (s *StorageAPIStore) Insert(ctx context.Context, eventID string, record []byte) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	previous, found, err := s.get(ctx, eventID)
	if err != nil {
		return nil, storeErr(backendStorageAPI, "insert", err)
	}

	content := base64.StdEncoding.EncodeToString(record)
	if !found {
		// POST creates a row per call, so it is sent once.
		var status int
		status, err = s.do(context.WithValue(ctx, sendOnceKey{}, true), http.MethodPost, s.endpoint+"/events",
			storageEvent{EventID: eventID, Content: content}, nil)
		if status == http.StatusConflict {
			found, err = true, nil
		}
	}
	if found && err == nil {
		_, err = s.do(ctx, http.MethodPut, s.eventURL(eventID), storageEvent{Content: content}, nil)
	}
	if err != nil {
		return nil, storeErr(backendStorageAPI, "insert", err)
	}
	return previous, nil
}

// Get fetches a record; 404 means absent
func (s *StorageAPIStore) Get(ctx context.Context, eventID string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	record, found, err := s.get(ctx, eventID)
	if err != nil {
		return nil, false, storeErr(backendStorageAPI, "get", err)
	}
	return record, found, nil
}

func (s *StorageAPIStore) get(ctx context.Context, eventID string) ([]byte, bool, error) {
	var ev storageEvent
	status, err := s.do(ctx, http.MethodGet, s.eventURL(eventID), nil, &ev)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	record, err := base64.StdEncoding.DecodeString(ev.Content)
	if err != nil {
		return nil, false, errors.Wrap(err, "decode content")
	}
	return record, true, nil
}

// GetAll lists every remote event
func (s *StorageAPIStore) GetAll(ctx context.Context) ([]Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var events []storageEvent
	status, err := s.do(ctx, http.MethodGet, s.endpoint+"/events", nil, &events)
	if err != nil {
		return nil, storeErr(backendStorageAPI, "get_all", err)
	}
	if status == http.StatusNotFound {
		return nil, storeErr(backendStorageAPI, "get_all", errors.New("events collection not found"))
	}

	entries := make([]Entry, 0, len(events))
	for _, ev := range events {
		record, err := base64.StdEncoding.DecodeString(ev.Content)
		if err != nil {
			return nil, storeErr(backendStorageAPI, "get_all", errors.Wrapf(err, "decode content of %s", ev.EventID))
		}
		entries = append(entries, Entry{EventID: ev.EventID, Record: record})
	}
	return entries, nil
}

// IsEmpty is not answered by the storage service.
func (s *StorageAPIStore) IsEmpty(ctx context.Context) bool {
	return false
}

// Close releases idle connections
func (s *StorageAPIStore) Close() error {
	s.client.HTTPClient.CloseIdleConnections()
	return nil
}

// retryLogger adapts zerolog to retryablehttp's leveled logger.
type retryLogger struct {
	logger zerolog.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.logger.Error().Fields(kv).Msg(msg) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn().Fields(kv).Msg(msg) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.logger.Debug().Fields(kv).Msg(msg) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug().Fields(kv).Msg(msg) }
