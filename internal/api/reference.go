package api

import (
	"context"
	"net/http"

	"github.com/tgienger/tasktrack/internal/models"
)

// ListUsers fetches every user
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users"}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListProjects fetches every project with its category
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/projects"}, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}
