package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
)

// DefaultURL is the Bazel Central Registry.
const DefaultURL = "https://bcr.bazel.build"

// NotFoundHash is recorded for registry files that do not exist. Their
// absence is part of the resolution inputs too.
const NotFoundHash = "not found"

// ErrNotFound reports that a registry does not have the requested file.
var ErrNotFound = errors.New("not found in registry")

// Client reads one registry.
type Client struct {
	baseURL string
	// root is set for file:// registries.
	root   string
	client *http.Client
	logger *log.Logger

	group singleflight.Group

	mu     sync.Mutex
	files  map[string]fetched
	hashes map[string]string
}

type fetched struct {
	data []byte
	err  error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the HTTP request timeout. Zero or negative values fall
// back to DefaultRequestTimeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		} else {
			c.client.Timeout = DefaultRequestTimeout
		}
	}
}

// WithLogger sets the logger fetches are reported to.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the registry at baseURL, which may be an
// http(s):// or a file:// URL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
		logger: log.New(io.Discard),
		files:  make(map[string]fetched),
		hashes: make(map[string]string),
	}

	switch {
	case strings.HasPrefix(c.baseURL, "file://"):
		root, err := parseFileURL(c.baseURL)
		if err != nil {
			return nil, err
		}
		c.root = root
	case strings.HasPrefix(c.baseURL, "https://"), strings.HasPrefix(c.baseURL, "http://"):
	default:
		return nil, fmt.Errorf("unsupported registry URL %q: must be http(s):// or file://", baseURL)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the registry URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetModuleFile returns the raw MODULE.bazel of a module version.
func (c *Client) GetModuleFile(ctx context.Context, name, version string) ([]byte, error) {
	return c.fetch(ctx, "modules", name, version, "MODULE.bazel")
}

// GetMetadata fetches a module's metadata.json.
func (c *Client) GetMetadata(ctx context.Context, name string) (*Metadata, error) {
	var m Metadata
	if err := c.fetchJSON(ctx, &m, "modules", name, "metadata.json"); err != nil {
		return nil, fmt.Errorf("failed to fetch metadata for %s: %w", name, err)
	}
	return &m, nil
}

// YankedVersions returns the yanked versions of a module and their reasons.
// A module without metadata has none.
func (c *Client) YankedVersions(ctx context.Context, name string) (map[string]string, error) {
	m, err := c.GetMetadata(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return maps.Clone(m.YankedVersions), nil
}

// GetSource fetches a module version's source.json.
func (c *Client) GetSource(ctx context.Context, name, version string) (*Source, error) {
	var s Source
	if err := c.fetchJSON(ctx, &s, "modules", name, version, "source.json"); err != nil {
		return nil, fmt.Errorf("failed to fetch source for %s@%s: %w", name, version, err)
	}
	return &s, nil
}

// GetRegistryConfig fetches bazel_registry.json. A registry without one
// has the zero configuration.
func (c *Client) GetRegistryConfig(ctx context.Context) (*RegistryConfig, error) {
	var cfg RegistryConfig
	err := c.fetchJSON(ctx, &cfg, "bazel_registry.json")
	if errors.Is(err, ErrNotFound) {
		return &RegistryConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registry config: %w", err)
	}
	return &cfg, nil
}

// FileHashes returns the SHA-256 of every file fetched so far, keyed by URL.
// Files that did not exist map to NotFoundHash.
func (c *Client) FileHashes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.hashes)
}

func (c *Client) url(parts ...string) string {
	return c.baseURL + "/" + strings.Join(parts, "/")
}

func (c *Client) fetchJSON(ctx context.Context, v any, parts ...string) error {
	data, err := c.fetch(ctx, parts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", c.url(parts...), err)
	}
	return nil
}

// fetch returns a registry file. Results, including ErrNotFound, are
// cached for the life of the client; concurrent requests for one file
// share a single fetch.
func (c *Client) fetch(ctx context.Context, parts ...string) ([]byte, error) {
	url := c.url(parts...)

	c.mu.Lock()
	f, ok := c.files[url]
	c.mu.Unlock()
	if ok {
		return f.data, f.err
	}

	v, err, _ := c.group.Do(url, func() (any, error) {
		var data []byte
		var err error
		if c.root != "" {
			data, err = c.readFile(ctx, parts...)
		} else {
			data, err = c.get(ctx, url)
		}
		// Transient failures are not cached.
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.files[url] = fetched{data: data, err: err}
		if err != nil {
			c.hashes[url] = NotFoundHash
		} else {
			sum := sha256.Sum256(data)
			c.hashes[url] = hex.EncodeToString(sum[:])
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("registry fetch", "url", url, "status", resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	default:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)
	}
}

func (c *Client) readFile(ctx context.Context, parts ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(append([]string{c.root}, parts...)...)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	c.logger.Debug("registry read", "path", path, "err", err)
	return data, err
}

// parseFileURL extracts the path from a file:// URL.
//
//	Unix:    file:///tmp/registry      -> /tmp/registry
//	Windows: file:///C:/Users/registry -> C:/Users/registry
func parseFileURL(url string) (string, error) {
	path, ok := strings.CutPrefix(url, "file://")
	if !ok || path == "" {
		return "", fmt.Errorf("not a file:// URL: %s", url)
	}
	if len(path) >= 3 && path[0] == '/' && isDriveLetter(path[1]) && path[2] == ':' {
		path = path[1:]
	}
	return filepath.Clean(path), nil
}

func isDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
