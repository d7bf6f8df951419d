// Package catalog defines the contract the pipeline requires from the remote
// data-management repository, and a REST adapter implementing it. The wire
// protocol of the repository itself is out of scope; only this surface is.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/fluxlab/curator/internal/catalog Client

// Client is the repository surface the pipeline consumes. All operations are
// scoped to the login session and the currently selected context.
type Client interface {
	Login(ctx context.Context, user, pass string) error
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (User, error)
	SetContext(ctx context.Context, contextID string) error
	ListProjects(ctx context.Context) ([]Project, error)
	ListCollectionItems(ctx context.Context, collectionID, contextID string) ([]Item, error)
	CreateRecord(ctx context.Context, req CreateRecordRequest) (string, error)
	Put(ctx context.Context, recordID, path string, wait bool) (TaskInfo, error)
	TaskStatus(ctx context.Context, taskID string) (TaskInfo, error)
	UpdateRecord(ctx context.Context, recordID string, fields map[string]any) error
	DeleteRecord(ctx context.Context, recordID string) error
}

// ErrNotAuthenticated is returned for session-scoped calls before Login.
var ErrNotAuthenticated = errors.New("catalog: not authenticated")

// User identifies the logged-in account.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is a selectable context/namespace in the repository.
type Project struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Item is a record or collection inside a collection listing.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CreateRecordRequest carries everything needed to register one record.
type CreateRecordRequest struct {
	Title      string          `json:"title"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	ParentID   string          `json:"parent_id"`
	Repository string          `json:"repository"`
	Tags       []string        `json:"tags,omitempty"`
}

// TaskInfo describes an asynchronous transfer task.
type TaskInfo struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	BytesTransferred int64     `json:"bytes_transferred"`
	TotalBytes       int64     `json:"total_bytes"`
	Error            string    `json:"error,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}
