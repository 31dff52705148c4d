package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
)

// Client resolves identities from the external user directory service.
// The core never calls this; the boundary uses it to show human-readable
// names and derive roles while tasks and instances store raw id strings.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a directory client against baseURL
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://jsonplaceholder.typicode.com"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type directoryRecord struct {
	ID    json.Number `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
}

// GetUser fetches a single directory user by id
func (c *Client) GetUser(ctx context.Context, id string) (*models.DirectoryUser, error) {
	var record directoryRecord
	if err := c.get(ctx, fmt.Sprintf("%s/users/%s", c.baseURL, id), &record); err != nil {
		return nil, err
	}
	return toDirectoryUser(record), nil
}

// ListUsers fetches all directory users
func (c *Client) ListUsers(ctx context.Context) ([]*models.DirectoryUser, error) {
	var records []directoryRecord
	if err := c.get(ctx, fmt.Sprintf("%s/users", c.baseURL), &records); err != nil {
		return nil, err
	}

	users := make([]*models.DirectoryUser, 0, len(records))
	for _, record := range records {
		users = append(users, toDirectoryUser(record))
	}
	return users, nil
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("user directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("user directory returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode user directory response: %w", err)
	}
	return nil
}

func toDirectoryUser(record directoryRecord) *models.DirectoryUser {
	id := record.ID.String()
	return &models.DirectoryUser{
		ID:    id,
		Name:  record.Name,
		Email: record.Email,
		Role:  RoleForID(id),
	}
}

// RoleForID derives a workflow role from a directory id. Id "1" is always
// the admin; the rest cycle by id modulo 4.
func RoleForID(id string) string {
	if id == "1" {
		return models.RoleAdmin
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return models.RoleUploader
	}
	switch n % 4 {
	case 0:
		return models.RoleReviewer
	case 1:
		return models.RoleAdmin
	case 2:
		return models.RoleUploader
	default:
		return models.RolePreparator
	}
}
