package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RESTClient talks to the repository's HTTP gateway. Login state and the
// selected context are session-wide on the remote side, mirroring the
// repository's own semantics: one logical session per process. The token is
// guarded because the API actor logs in and out while the worker is mid-cycle.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewRESTClient creates a client for the repository gateway at baseURL.
func NewRESTClient(baseURL string, logger *slog.Logger) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.With("component", "catalog"),
	}
}

var _ Client = (*RESTClient)(nil)

func (c *RESTClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *RESTClient) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *RESTClient) Login(ctx context.Context, user, pass string) error {
	body := map[string]string{"username": user, "password": pass}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login: gateway returned no session token")
	}
	c.setToken(resp.Token)
	c.logger.Info("logged in", "user", user)
	return nil
}

func (c *RESTClient) Logout(ctx context.Context) error {
	if c.currentToken() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.setToken("")
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *RESTClient) CurrentUser(ctx context.Context) (User, error) {
	if c.currentToken() == "" {
		return User{}, ErrNotAuthenticated
	}
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return User{}, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

func (c *RESTClient) SetContext(ctx context.Context, contextID string) error {
	if c.currentToken() == "" {
		return ErrNotAuthenticated
	}
	body := map[string]string{"context": contextID}
	if err := c.do(ctx, http.MethodPost, "/session/context", body, nil); err != nil {
		return fmt.Errorf("set context %q: %w", contextID, err)
	}
	return nil
}

func (c *RESTClient) ListProjects(ctx context.Context) ([]Project, error) {
	if c.currentToken() == "" {
		return nil, ErrNotAuthenticated
	}
	var resp struct {
		Items []Project `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &resp); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return resp.Items, nil
}

func (c *RESTClient) ListCollectionItems(ctx context.Context, collectionID, contextID string) ([]Item, error) {
	if c.currentToken() == "" {
		return nil, ErrNotAuthenticated
	}
	path := "/collections/" + url.PathEscape(collectionID) + "/items"
	if contextID != "" {
		path += "?context=" + url.QueryEscape(contextID)
	}
	var resp struct {
		Items []Item `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list collection %q: %w", collectionID, err)
	}
	return resp.Items, nil
}

func (c *RESTClient) CreateRecord(ctx context.Context, req CreateRecordRequest) (string, error) {
	if c.currentToken() == "" {
		return "", ErrNotAuthenticated
	}
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/records", req, &resp); err != nil {
		return "", fmt.Errorf("create record %q: %w", req.Title, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].ID == "" {
		return "", fmt.Errorf("create record %q: gateway returned no record id", req.Title)
	}
	return resp.Data[0].ID, nil
}

func (c *RESTClient) Put(ctx context.Context, recordID, path string, wait bool) (TaskInfo, error) {
	if c.currentToken() == "" {
		return TaskInfo{}, ErrNotAuthenticated
	}
	body := map[string]any{"path": path, "wait": wait}
	var info TaskInfo
	p := "/records/" + url.PathEscape(recordID) + "/data?wait=" + strconv.FormatBool(wait)
	if err := c.do(ctx, http.MethodPut, p, body, &info); err != nil {
		return TaskInfo{}, fmt.Errorf("put %q into record %s: %w", path, recordID, err)
	}
	return info, nil
}

func (c *RESTClient) TaskStatus(ctx context.Context, taskID string) (TaskInfo, error) {
	if c.currentToken() == "" {
		return TaskInfo{}, ErrNotAuthenticated
	}
	var info TaskInfo
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &info); err != nil {
		return TaskInfo{}, fmt.Errorf("task status %s: %w", taskID, err)
	}
	return info, nil
}

func (c *RESTClient) UpdateRecord(ctx context.Context, recordID string, fields map[string]any) error {
	if c.currentToken() == "" {
		return ErrNotAuthenticated
	}
	if err := c.do(ctx, http.MethodPatch, "/records/"+url.PathEscape(recordID), fields, nil); err != nil {
		return fmt.Errorf("update record %s: %w", recordID, err)
	}
	return nil
}

func (c *RESTClient) DeleteRecord(ctx context.Context, recordID string) error {
	if c.currentToken() == "" {
		return ErrNotAuthenticated
	}
	if err := c.do(ctx, http.MethodDelete, "/records/"+url.PathEscape(recordID), nil, nil); err != nil {
		return fmt.Errorf("delete record %s: %w", recordID, err)
	}
	return nil
}

// do performs one JSON request/response round trip.
func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
