// Package remote fetches projects and tasks from the Asana REST API and
// caches them for the lifetime of one synchronization pass.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/asana2sql/internal/logging"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// ErrNotFound is returned by a Client when the requested object does not
// exist on the remote.
var ErrNotFound = errors.New("remote object not found")

// Client is the remote boundary. fields is a comma-joined attribute
// projection.
type Client interface {
	FetchProject(ctx context.Context, projectID, fields string) (types.Record, error)
	FetchTasks(ctx context.Context, projectID, fields string) ([]types.Record, error)
	FetchSubtasks(ctx context.Context, taskID, fields string) ([]types.Record, error)
}

// APIError is a non-2xx response other than 404.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asana api: status %d: %s", e.StatusCode, e.Message)
}

// HTTPClient talks to the Asana REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logrus.FieldLogger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client from the asana section of the config.
// A zero BaseURL or Timeout falls back to the package defaults.
func NewHTTPClient(cfg types.AsanaConfig, logger logrus.FieldLogger) *HTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = types.DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   cfg.AccessToken,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FetchProject implements Client.
func (c *HTTPClient) FetchProject(ctx context.Context, projectID, fields string) (types.Record, error) {
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := c.get(ctx, "/projects/"+url.PathEscape(projectID), fields, &env); err != nil {
		return nil, err
	}
	return normalize(env.Data), nil
}

// FetchTasks implements Client.
func (c *HTTPClient) FetchTasks(ctx context.Context, projectID, fields string) ([]types.Record, error) {
	return c.list(ctx, "/projects/"+url.PathEscape(projectID)+"/tasks", fields)
}

// FetchSubtasks implements Client.
func (c *HTTPClient) FetchSubtasks(ctx context.Context, taskID, fields string) ([]types.Record, error) {
	return c.list(ctx, "/tasks/"+url.PathEscape(taskID)+"/subtasks", fields)
}

func (c *HTTPClient) list(ctx context.Context, path, fields string) ([]types.Record, error) {
	var env struct {
		Data []map[string]any `json:"data"`
	}
	if err := c.get(ctx, path, fields, &env); err != nil {
		return nil, err
	}
	records := make([]types.Record, len(env.Data))
	for i, d := range env.Data {
		records[i] = normalize(d)
	}
	return records, nil
}

func (c *HTTPClient) get(ctx context.Context, path, fields string, out any) error {
	u := c.baseURL + path
	if fields != "" {
		u += "?" + url.Values{"opt_fields": {optFields(fields)}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("GET %s: read body: %w", path, err)
	}
	c.logger.WithFields(logrus.Fields{
		"path":   path,
		"status": resp.StatusCode,
		"ms":     time.Since(start).Milliseconds(),
	}).Debug("asana request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the first message of an Asana error envelope,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var env struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := sonic.Unmarshal(body, &env); err == nil && len(env.Errors) > 0 {
		return env.Errors[0].Message
	}
	return strings.TrimSpace(string(body))
}

// optFields maps the id attribute onto Asana's gid in every segment of a
// projection: "id,parent.id" becomes "gid,parent.gid".
func optFields(fields string) string {
	parts := strings.Split(fields, ",")
	for i, p := range parts {
		segs := strings.Split(p, ".")
		for j, s := range segs {
			if s == types.IDAttribute {
				segs[j] = "gid"
			}
		}
		parts[i] = strings.Join(segs, ".")
	}
	return strings.Join(parts, ",")
}

// normalize copies gid into id on the record and every nested object so
// that records always carry their identity under id.
func normalize(m map[string]any) types.Record {
	normalizeValue(m)
	return types.Record(m)
}

func normalizeValue(v any) {
	switch x := v.(type) {
	case map[string]any:
		if gid, ok := x["gid"]; ok {
			if _, has := x[types.IDAttribute]; !has {
				x[types.IDAttribute] = gid
			}
		}
		for _, child := range x {
			normalizeValue(child)
		}
	case []any:
		for _, child := range x {
			normalizeValue(child)
		}
	}
}
