// Package scratchapi looks up shared projects on the Scratch website.
// The project server only hands out payloads to requests carrying the
// short-lived token published in the project's metadata.
package scratchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"sbdl/pkg/common"
	"sbdl/pkg/downloader"
)

const (
	// DefaultAPIHost serves project metadata.
	DefaultAPIHost = "https://api.scratch.mit.edu"
	// DefaultProjectHost serves project payloads.
	DefaultProjectHost = "https://projects.scratch.mit.edu"
)

var (
	idPattern  = regexp.MustCompile(`^\d+$`)
	urlPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.)?scratch\.mit\.edu/projects/(\d+)(?:[/?#].*)?$`)
)

// Metadata is the subset of the project API response used here.
type Metadata struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Token  string `json:"project_token"`
	Author struct {
		Username string `json:"username"`
	} `json:"author"`
}

// Option configures a Client.
type Option func(*Client)

// WithAPIHost overrides the metadata host.
func WithAPIHost(host string) Option {
	return func(c *Client) {
		c.apiHost = strings.TrimSuffix(host, "/")
	}
}

// WithProjectHost overrides the payload host.
func WithProjectHost(host string) Option {
	return func(c *Client) {
		c.projectHost = strings.TrimSuffix(host, "/")
	}
}

// Immutable
type Client struct {
	d           downloader.Downloader
	apiHost     string
	projectHost string
}

// New creates a Client fetching through d.
func New(d downloader.Downloader, opts ...Option) *Client {
	c := &Client{
		d:           d,
		apiHost:     DefaultAPIHost,
		projectHost: DefaultProjectHost,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseID extracts a project ID from a bare number or a project page URL.
func ParseID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if idPattern.MatchString(s) {
		return s, true
	}
	if m := urlPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// Metadata fetches the public metadata of project id.
func (c *Client) Metadata(ctx context.Context, id string) (*Metadata, error) {
	if !idPattern.MatchString(id) {
		return nil, fmt.Errorf("invalid project id %q", id)
	}

	data, err := c.d.FetchWithProgress(ctx, c.apiHost+"/projects/"+id, nil)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &common.ParseError{Err: fmt.Errorf("project %s metadata: %w", id, err)}
	}
	return &meta, nil
}

// ProjectURL returns the payload URL for project id, authorized by the
// token in meta when there is one.
func (c *Client) ProjectURL(id string, meta *Metadata) string {
	u := c.projectHost + "/" + id
	if meta != nil && meta.Token != "" {
		u += "?token=" + url.QueryEscape(meta.Token)
	}
	return u
}
