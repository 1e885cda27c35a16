package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.clickup.com/api/v2"

// ClickUp allows 100 requests per minute per token.
const requestsPerMinute = 100

// maxPages stops a misbehaving API from paging forever.
const maxPages = 1000

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu        sync.RWMutex
	listIDs   []string
	listNames map[string]string
}

func NewClient(apiKey string, listIDs []string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/requestsPerMinute), 10),
		listIDs:    listIDs,
		listNames:  make(map[string]string),
	}
}

// SetBaseURL points the client at another API root, e.g. a test server.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SetListNames records the display names used as team names.
func (c *Client) SetListNames(names map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, name := range names {
		c.listNames[id] = name
	}
}

// SetListIDs replaces the lists the client reads from.
func (c *Client) SetListIDs(listIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listIDs = slices.Clone(listIDs)
}

// ListIDs returns the lists the client reads from.
func (c *Client) ListIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.listIDs)
}

// ListName returns the display name of a list, falling back to its ID.
func (c *Client) ListName(listID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.listNames[listID]; ok && name != "" {
		return name
	}
	return listID
}

type ClickUpTask struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Status      ClickUpStatus `json:"status"`
	URL         string        `json:"url"`
	DateCreated string        `json:"date_created"`
	DateUpdated string        `json:"date_updated"`
	DateClosed  *string       `json:"date_closed"`
	StartDate   *string       `json:"start_date"`
	DueDate     *string       `json:"due_date"`
	Assignees   []Assignee    `json:"assignees"`
	List        ListRef       `json:"list"`
}

type ClickUpStatus struct {
	Status string `json:"status"`
}

type Assignee struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ListRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TasksResponse struct {
	Tasks    []ClickUpTask `json:"tasks"`
	LastPage bool          `json:"last_page"`
}

type FolderListsResponse struct {
	Lists []ListRef `json:"lists"`
}

// FetchTasks pages through every task of a list, closed tasks and
// subtasks included.
func (c *Client) FetchTasks(ctx context.Context, listID string) ([]ClickUpTask, error) {
	var all []ClickUpTask

	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("include_closed", "true")
		query.Set("subtasks", "true")
		query.Set("page", fmt.Sprintf("%d", page))

		var result TasksResponse
		path := fmt.Sprintf("/list/%s/task?%s", url.PathEscape(listID), query.Encode())
		if err := c.get(ctx, path, &result); err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", listID, page, err)
		}

		all = append(all, result.Tasks...)
		if result.LastPage || len(result.Tasks) == 0 {
			return all, nil
		}
	}

	return all, nil
}

// GetListIDsAndNamesFromFolder returns the IDs of the lists in a folder and
// their names keyed by ID.
func (c *Client) GetListIDsAndNamesFromFolder(ctx context.Context, folderID string) ([]string, map[string]string, error) {
	var result FolderListsResponse
	path := fmt.Sprintf("/folder/%s/list?archived=false", url.PathEscape(folderID))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, nil, fmt.Errorf("folder %s: %w", folderID, err)
	}

	ids := make([]string, 0, len(result.Lists))
	names := make(map[string]string, len(result.Lists))
	for _, l := range result.Lists {
		ids = append(ids, l.ID)
		names[l.ID] = l.Name
	}
	return ids, names, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.get(ctx, "/user", nil); err != nil {
		return fmt.Errorf("API health check failed: %w", err)
	}
	return nil
}

// get issues a rate-limited GET and decodes the JSON body into out when
// out is not nil.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
