package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
)

// Chain asks its registries in priority order. For each module version the
// first registry that has its module file serves it; a registry that fails
// for any other reason stops the lookup, so a flaky registry cannot change
// which source is selected.
type Chain struct {
	clients []*Client
}

// NewChain creates clients for urls, in order.
func NewChain(urls []string, opts ...ClientOption) (*Chain, error) {
	if len(urls) == 0 {
		return nil, errors.New("no registry URLs provided")
	}
	clients := make([]*Client, 0, len(urls))
	for _, url := range urls {
		c, err := NewClient(url, opts...)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return &Chain{clients: clients}, nil
}

// GetModuleFile returns the module file of name@version and the registry
// that served it. The error wraps ErrNotFound when no registry has it.
func (ch *Chain) GetModuleFile(ctx context.Context, name, version string) ([]byte, *Client, error) {
	for _, c := range ch.clients {
		data, err := c.GetModuleFile(ctx, name, version)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("registry %s: %w", c.BaseURL(), err)
		}
		return data, c, nil
	}
	return nil, nil, fmt.Errorf("module %s@%s: %w", name, version, ErrNotFound)
}

// Client returns the chain member with the given URL.
func (ch *Chain) Client(url string) (*Client, bool) {
	for _, c := range ch.clients {
		if c.BaseURL() == url {
			return c, true
		}
	}
	return nil, false
}

// URLs returns the registry URLs in priority order.
func (ch *Chain) URLs() []string {
	urls := make([]string, len(ch.clients))
	for i, c := range ch.clients {
		urls[i] = c.BaseURL()
	}
	return urls
}

// FileHashes merges the file hashes of every registry.
func (ch *Chain) FileHashes() map[string]string {
	out := make(map[string]string)
	for _, c := range ch.clients {
		maps.Copy(out, c.FileHashes())
	}
	return out
}
