package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Application is one tenant application as reported by the API.
type Application struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Group is the organizational unit above an application (a workspace).
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Snapshot is a server-managed point-in-time copy of one application. The
// server owns these records; this client only lists, creates, and deletes.
type Snapshot struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Client) ListApplications(ctx context.Context) ([]Application, error) {
	var apps []Application
	if err := c.do(ctx, http.MethodGet, "/applications/", nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.do(ctx, http.MethodGet, "/groups/", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) CreateGroup(ctx context.Context, name string) (Group, error) {
	var group Group
	in := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/groups/", in, &group); err != nil {
		return Group{}, err
	}
	return group, nil
}

// GroupName resolves a group id to its display name.
func (c *Client) GroupName(ctx context.Context, id int) (string, error) {
	groups, err := c.ListGroups(ctx)
	if err != nil {
		return "", err
	}
	for _, g := range groups {
		if g.ID == id {
			return g.Name, nil
		}
	}
	return "", fmt.Errorf("group %d not found", id)
}

func (c *Client) ListSnapshots(ctx context.Context, applicationID int) ([]Snapshot, error) {
	var snaps []Snapshot
	path := fmt.Sprintf("/snapshots/application/%d/", applicationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// CreateSnapshot asks the server to snapshot one application. It returns
// ErrOperationLimit when the server's concurrency quota is exhausted.
func (c *Client) CreateSnapshot(ctx context.Context, applicationID int, name string) (Snapshot, error) {
	var snap Snapshot
	path := fmt.Sprintf("/snapshots/application/%d/", applicationID)
	in := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, path, in, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *Client) DeleteSnapshot(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/snapshots/%d/", id), nil, nil)
}
