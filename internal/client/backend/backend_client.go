package backend

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
	"sync"
	"time"

	"github.com/TWRT/smarttask/internal/client"
	"github.com/TWRT/smarttask/internal/models"
	"github.com/TWRT/smarttask/internal/session"
)

const DefaultBucket = "task-images"

type Config struct {
	URL     string
	AnonKey string
	Bucket  string
	Timeout time.Duration
}

// BackendClient talks to a backend-as-a-service exposing auth, a task table and
// object storage over REST. It owns the client-side session and publishes
// session changes to subscribers.
type BackendClient struct {
	baseUrl    string
	apiKey     string
	bucket     string
	httpClient *http.Client
	store      session.Store
	events     *session.Broadcaster
	now        func() time.Time

	mu      sync.RWMutex
	current *models.Session
	loaded  bool
}

var _ client.Backend = (*BackendClient)(nil)

func NewBackendClient(cfg Config, store session.Store) *BackendClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	if store == nil {
		store = session.NewMemoryStore()
	}
	return &BackendClient{
		baseUrl:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.AnonKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		events:     session.NewBroadcaster(),
		now:        time.Now,
	}
}

// Close drops every session subscriber.
func (c *BackendClient) Close() {
	c.events.Close()
}

func (c *BackendClient) OnSessionChange(fn func(models.SessionEvent)) (unsubscribe func()) {
	return c.events.Subscribe(fn)
}

// CurrentSession returns the stored session, or nil when signed out or expired.
func (c *BackendClient) CurrentSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		s, err := c.store.Load()
		if err != nil {
			return nil, fmt.Errorf("load session (backend): %w", err)
		}
		c.current = s
		c.loaded = true
	}
	if c.current != nil && c.current.Expired(c.now()) {
		c.current = nil
		if err := c.store.Clear(); err != nil {
			return nil, fmt.Errorf("clear expired session (backend): %w", err)
		}
	}
	if c.current == nil {
		return nil, nil
	}
	s := *c.current
	return &s, nil
}

func (c *BackendClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("sign in (backend): %w", err)
	}
	s := resp.session(c.now())
	if s == nil {
		return nil, fmt.Errorf("sign in (backend): response carried no session")
	}
	if err := c.setSession(s); err != nil {
		return nil, err
	}
	c.events.Publish(models.SessionEvent{Type: models.SessionSignedIn, Session: s})
	return s, nil
}

func (c *BackendClient) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	var resp AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/signup", "", credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("sign up (backend): %w", err)
	}
	s := resp.session(c.now())
	if s == nil {
		return nil, nil
	}
	if err := c.setSession(s); err != nil {
		return nil, err
	}
	c.events.Publish(models.SessionEvent{Type: models.SessionSignedIn, Session: s})
	return s, nil
}

// SignOut always drops the local session; the remote error, if any, is still returned.
func (c *BackendClient) SignOut(ctx context.Context) error {
	s, err := c.CurrentSession(ctx)
	if err != nil {
		return err
	}
	var remoteErr error
	if s != nil {
		remoteErr = c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", s.AccessToken, nil, nil)
	}
	if err := c.setSession(nil); err != nil {
		return err
	}
	c.events.Publish(models.SessionEvent{Type: models.SessionSignedOut})
	if remoteErr != nil {
		return fmt.Errorf("sign out (backend): %w", remoteErr)
	}
	return nil
}

// User asks the backend who the current token belongs to.
func (c *BackendClient) User(ctx context.Context) (*models.User, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/v1/user", token, nil, &u); err != nil {
		return nil, fmt.Errorf("get user (backend): %w", err)
	}
	return &u, nil
}

func (c *BackendClient) ListTasks(ctx context.Context) ([]models.Task, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := c.doJSON(ctx, http.MethodGet, "/rest/v1/tasks?select=*&order=createdAt.desc", token, nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks (backend): %w", err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (c *BackendClient) UpsertTask(ctx context.Context, task models.Task) error {
	if err := c.upsert(ctx, []models.Task{task}); err != nil {
		return fmt.Errorf("upsert task %s (backend): %w", task.ID, err)
	}
	return nil
}

func (c *BackendClient) UpsertTasks(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := c.upsert(ctx, tasks); err != nil {
		return fmt.Errorf("sync tasks (backend): %w", err)
	}
	return nil
}

func (c *BackendClient) upsert(ctx context.Context, tasks []models.Task) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/tasks?on_conflict=id", token, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	return c.do(req, nil)
}

func (c *BackendClient) DeleteTask(ctx context.Context, id string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	path := "/rest/v1/tasks?id=" + url.QueryEscape("eq."+id)
	if err := c.doJSON(ctx, http.MethodDelete, path, token, nil, nil); err != nil {
		return fmt.Errorf("delete task %s (backend): %w", id, err)
	}
	return nil
}

func (c *BackendClient) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.objectPath(objectPath), token, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("upload %s (backend): %w", objectPath, err)
	}
	return nil
}

func (c *BackendClient) PublicURL(objectPath string) string {
	return c.baseUrl + "/storage/v1/object/public/" + url.PathEscape(c.bucket) + "/" + escapeObjectPath(objectPath)
}

func (c *BackendClient) objectPath(objectPath string) string {
	return "/storage/v1/object/" + url.PathEscape(c.bucket) + "/" + escapeObjectPath(objectPath)
}

func escapeObjectPath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (c *BackendClient) setSession(s *models.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Save(s); err != nil {
		return fmt.Errorf("persist session (backend): %w", err)
	}
	c.current = s
	c.loaded = true
	return nil
}

func (c *BackendClient) token(ctx context.Context) (string, error) {
	s, err := c.CurrentSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", client.ErrNoSession
	}
	return s.AccessToken, nil
}

func (c *BackendClient) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request (backend): %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	switch {
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *BackendClient) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request (backend): %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *BackendClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body (backend): %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			apiErr.Message = eb.text()
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			apiErr.cause = client.ErrUnauthorized
		case http.StatusForbidden:
			apiErr.cause = client.ErrForbidden
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response (backend): %w", err)
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
