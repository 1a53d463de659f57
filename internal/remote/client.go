package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pixsync/internal/pix"
)

const (
	// pageSize is the page length for paginated listings.
	pageSize = 200

	// maxSearchWindow bounds the filename search result window; the store
	// refuses larger offsets.
	maxSearchWindow = 500
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the remote photo service's JSON API. A Client is built
// per command invocation; Login stores the session token, Logout drops it.
// Calling any other method before Login is a programming error and fails
// immediately with pix.ErrNotAuthenticated.
type Client struct {
	baseURL string
	http    HTTPDoer
	token   string
}

// NewClient constructs a client for the service at baseURL.
func NewClient(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
	}
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", nil, body, &resp, false); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login: missing token in response")
	}
	c.token = resp.Token
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil, true)
	c.token = ""
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *Client) EnsureFolder(ctx context.Context, folderPath string) error {
	body := map[string]string{"path": folderPath}
	err := c.doJSON(ctx, http.MethodPost, "/api/folders", nil, body, nil, true)
	if err != nil {
		if isConflict(err) {
			// Folder already exists.
			return nil
		}
		return fmt.Errorf("creating folder %s: %w", folderPath, err)
	}
	return nil
}

func (c *Client) Upload(ctx context.Context, folderPath, filename string, r io.Reader, size int64) error {
	if c.token == "" {
		return pix.ErrNotAuthenticated
	}

	q := url.Values{}
	q.Set("folder", folderPath)
	q.Set("filename", filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/upload?"+q.Encode(), r)
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Session-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", filename, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return fmt.Errorf("uploading %s: %w", filename, err)
	}
	return nil
}

func (c *Client) ListAlbums(ctx context.Context) ([]pix.RemoteAlbum, error) {
	var albums []pix.RemoteAlbum
	for offset := 0; ; offset += pageSize {
		var resp struct {
			Items []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"items"`
			Total int `json:"total"`
		}
		q := url.Values{}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(pageSize))
		if err := c.doJSON(ctx, http.MethodGet, "/api/albums", q, nil, &resp, true); err != nil {
			return nil, fmt.Errorf("listing albums: %w", err)
		}
		for _, item := range resp.Items {
			albums = append(albums, pix.RemoteAlbum{ID: item.ID, Name: item.Name})
		}
		if offset+len(resp.Items) >= resp.Total || len(resp.Items) == 0 {
			break
		}
	}
	return albums, nil
}

func (c *Client) CreateAlbum(ctx context.Context, name string) (*pix.RemoteAlbum, error) {
	var resp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	body := map[string]string{"name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/api/albums", nil, body, &resp, true); err != nil {
		if isConflict(err) {
			return nil, pix.ErrAlbumExists
		}
		return nil, fmt.Errorf("creating album %s: %w", name, err)
	}
	return &pix.RemoteAlbum{ID: resp.ID, Name: resp.Name}, nil
}

func (c *Client) SearchByFilename(ctx context.Context, filename string) ([]pix.RemotePhotoRef, error) {
	var refs []pix.RemotePhotoRef
	for offset := 0; offset < maxSearchWindow; offset += pageSize {
		var resp photoPage
		q := url.Values{}
		q.Set("filename", filename)
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(pageSize))
		if err := c.doJSON(ctx, http.MethodGet, "/api/photos/search", q, nil, &resp, true); err != nil {
			return nil, fmt.Errorf("searching for %s: %w", filename, err)
		}
		refs = append(refs, resp.refs()...)
		if offset+len(resp.Items) >= resp.Total || len(resp.Items) == 0 {
			break
		}
	}
	if len(refs) == 0 {
		return nil, pix.ErrNotFound
	}
	return refs, nil
}

func (c *Client) AddToAlbum(ctx context.Context, albumID string, photoIDs []string) error {
	body := map[string]any{"photo_ids": photoIDs}
	path := "/api/albums/" + url.PathEscape(albumID) + "/photos"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, body, nil, true); err != nil {
		return fmt.Errorf("adding %d photos to album: %w", len(photoIDs), err)
	}
	return nil
}

func (c *Client) ListFolderPhotos(ctx context.Context, folderPath string) ([]pix.RemotePhotoRef, error) {
	var refs []pix.RemotePhotoRef
	for offset := 0; ; offset += pageSize {
		var resp photoPage
		q := url.Values{}
		q.Set("path", folderPath)
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(pageSize))
		if err := c.doJSON(ctx, http.MethodGet, "/api/folders/photos", q, nil, &resp, true); err != nil {
			return nil, fmt.Errorf("listing folder %s: %w", folderPath, err)
		}
		refs = append(refs, resp.refs()...)
		if offset+len(resp.Items) >= resp.Total || len(resp.Items) == 0 {
			break
		}
	}
	return refs, nil
}

// photoPage is the wire shape shared by search and folder listing.
type photoPage struct {
	Items []struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Folder   string `json:"folder"`
		Size     int64  `json:"size"`
		Hash     string `json:"hash"`
		TakenAt  string `json:"taken_at"`
	} `json:"items"`
	Total int `json:"total"`
}

func (p *photoPage) refs() []pix.RemotePhotoRef {
	refs := make([]pix.RemotePhotoRef, 0, len(p.Items))
	for _, item := range p.Items {
		refs = append(refs, pix.RemotePhotoRef{
			ID:          item.ID,
			Filename:    item.Filename,
			FolderPath:  item.Folder,
			Size:        item.Size,
			ContentHash: item.Hash,
			TakenAt:     item.TakenAt,
		})
	}
	return refs
}

// statusCodeError carries an HTTP status for sentinel mapping.
type statusCodeError struct {
	code int
	body string
}

func (e *statusCodeError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("remote store returned %d: %s", e.code, e.body)
	}
	return fmt.Sprintf("remote store returned %d", e.code)
}

func isConflict(err error) bool {
	var sc *statusCodeError
	return errors.As(err, &sc) && sc.code == http.StatusConflict
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return pix.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return pix.ErrNotAuthenticated
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusCodeError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
}

// doJSON performs a JSON request and decodes the response into out (when
// non-nil). needsAuth guards against calls made before Login.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any, needsAuth bool) error {
	if needsAuth && c.token == "" {
		return pix.ErrNotAuthenticated
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Session-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Compile-time check that Client implements the pix.RemoteStore interface.
var _ pix.RemoteStore = (*Client)(nil)
