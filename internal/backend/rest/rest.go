// Package rest implements backend.Backend over a PostgREST-style HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

// Backend talks to the tasks and sections tables through the REST gateway
// at baseURL. Requests are filtered to userID; the server is expected to
// enforce the same restriction through row-level security.
type Backend struct {
	baseURL    string
	apiKey     string
	token      string
	userID     string
	httpClient *http.Client
}

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// New creates a Backend. token is sent as a bearer credential; when it is
// empty the api key is used instead.
func New(baseURL, apiKey, token, userID string) (*Backend, error) {
	if baseURL == "" {
		return nil, errors.New("rest backend: base url is required")
	}
	if userID == "" {
		return nil, errors.New("rest backend: user id is required")
	}
	return &Backend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		token:      token,
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Close is a no-op for the HTTP backend.
func (b *Backend) Close() error { return nil }

func (b *Backend) ListTasks(ctx context.Context) ([]model.Task, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+b.userID)
	q.Set("order", "created_at.desc,id.asc")
	var tasks []model.Task
	if err := b.doJSON(ctx, "list tasks", http.MethodGet, "/rest/v1/tasks?"+q.Encode(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (b *Backend) ListSections(ctx context.Context) ([]model.Section, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+b.userID)
	q.Set("order", "order.asc,created_at.asc,id.asc")
	var sections []model.Section
	if err := b.doJSON(ctx, "list sections", http.MethodGet, "/rest/v1/sections?"+q.Encode(), nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func (b *Backend) InsertTask(ctx context.Context, t model.Task) (model.Task, error) {
	body := map[string]any{
		"user_id":     b.userID,
		"title":       t.Title,
		"description": nullIfEmpty(t.Description),
		"due_date":    t.DueAt,
		"completed":   t.Completed,
		"quadrant":    int(t.Quadrant),
		"section_id":  nullIfEmpty(t.SectionID),
	}
	var rows []model.Task
	if err := b.doJSON(ctx, "insert task", http.MethodPost, "/rest/v1/tasks", body, &rows); err != nil {
		return model.Task{}, err
	}
	if len(rows) == 0 {
		return model.Task{}, &backend.Error{Op: "insert task", Code: backend.CodeInternal, Message: "empty representation"}
	}
	return rows[0], nil
}

func (b *Backend) UpdateTask(ctx context.Context, id string, p model.TaskPatch) error {
	if p.IsEmpty() {
		return nil
	}
	return b.mutateOne(ctx, "update task", http.MethodPatch, "tasks", id, p.Columns())
}

func (b *Backend) DeleteTask(ctx context.Context, id string) error {
	return b.mutateOne(ctx, "delete task", http.MethodDelete, "tasks", id, nil)
}

func (b *Backend) InsertSection(ctx context.Context, s model.Section) (model.Section, error) {
	body := map[string]any{
		"user_id": b.userID,
		"name":    s.Name,
		"order":   s.Order,
	}
	var rows []model.Section
	if err := b.doJSON(ctx, "insert section", http.MethodPost, "/rest/v1/sections", body, &rows); err != nil {
		return model.Section{}, err
	}
	if len(rows) == 0 {
		return model.Section{}, &backend.Error{Op: "insert section", Code: backend.CodeInternal, Message: "empty representation"}
	}
	return rows[0], nil
}

func (b *Backend) UpdateSection(ctx context.Context, id string, p model.SectionPatch) error {
	if p.IsEmpty() {
		return nil
	}
	return b.mutateOne(ctx, "update section", http.MethodPatch, "sections", id, p.Columns())
}

func (b *Backend) DeleteSection(ctx context.Context, id string) error {
	return b.mutateOne(ctx, "delete section", http.MethodDelete, "sections", id, nil)
}

// mutateOne runs a PATCH or DELETE against a single row and reports
// backend.ErrNotFound when the filter matched nothing.
func (b *Backend) mutateOne(ctx context.Context, op, method, table, id string, body any) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("user_id", "eq."+b.userID)
	var rows []json.RawMessage
	if err := b.doJSON(ctx, op, method, "/rest/v1/"+table+"?"+q.Encode(), body, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return &backend.Error{Op: op, Code: backend.CodeNotFound, Message: "no matching row"}
	}
	return nil
}

func (b *Backend) doJSON(ctx context.Context, op, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshaling request body: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if b.apiKey != "" {
		req.Header.Set("apikey", b.apiKey)
	}
	if bearer := b.bearer(); bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return &backend.Error{Op: op, Code: backend.CodeUnavailable, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &backend.Error{Op: op, Code: backend.CodeUnavailable, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return decodeError(op, resp.StatusCode, respBody)
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
	}
	return nil
}

func (b *Backend) bearer() string {
	if b.token != "" {
		return b.token
	}
	return b.apiKey
}

// decodeError maps a PostgREST error response onto a *backend.Error. The
// database error code, when present, is more specific than the status.
func decodeError(op string, status int, body []byte) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	e := &backend.Error{Op: op, Code: statusCode(status)}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		e.Message = payload.Message
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	switch payload.Code {
	case "23503":
		e.Code = backend.CodeForeignKey
	case "23505":
		e.Code = backend.CodeConflict
	case "23514", "23502", "22P02":
		e.Code = backend.CodeInvalid
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func statusCode(status int) backend.Code {
	switch {
	case status == http.StatusNotFound:
		return backend.CodeNotFound
	case status == http.StatusConflict:
		return backend.CodeConflict
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return backend.CodeUnauthorized
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return backend.CodeInvalid
	case status >= 500:
		return backend.CodeUnavailable
	}
	return backend.CodeInternal
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
