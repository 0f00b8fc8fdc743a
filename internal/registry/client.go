package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/secure-deps/depowners/internal/utils/retry"
)

// MinRequestInterval is the spacing the crates.io crawler policy asks
// for between API requests.
const MinRequestInterval = time.Second

// Client queries the registry's per-package ownership endpoints. A
// package's owners come from two calls, one for individual owners and
// one for team owners. The client enforces the request-interval policy
// itself so that concurrent callers cannot defeat it.
type Client struct {
	HTTP        *http.Client
	BaseURL     string
	MinInterval time.Duration

	mu        sync.Mutex
	lastReqAt time.Time
}

// NewClient returns a live-lookup client for the given API base URL,
// e.g. "https://crates.io/api/v1".
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		HTTP:        httpClient,
		BaseURL:     baseURL,
		MinInterval: MinRequestInterval,
	}
}

type ownersResponse struct {
	Users []ownerJSON `json:"users"`
	Teams []ownerJSON `json:"teams"`
}

type ownerJSON struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Login  string `json:"login"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Avatar string `json:"avatar"`
}

// OwnersOf fetches the full owner set of one package. A "not found"
// response is a legitimate terminal result (deleted or never published)
// and yields an empty set with no error; only exhausted transient
// failures or permanent request failures return an error, which the
// caller records as unresolved rather than as "no owners".
func (c *Client) OwnersOf(ctx context.Context, name string) ([]Owner, error) {
	users, err := c.fetchOwners(ctx, name, "owner_user", KindUser)
	if err != nil {
		return nil, err
	}
	teams, err := c.fetchOwners(ctx, name, "owner_team", KindTeam)
	if err != nil {
		return nil, err
	}
	return Dedupe(append(users, teams...)), nil
}

func (c *Client) fetchOwners(ctx context.Context, name, endpoint string, kind OwnerKind) ([]Owner, error) {
	reqURL := fmt.Sprintf("%s/crates/%s/%s", c.BaseURL, url.PathEscape(name), endpoint)

	var owners []Owner
	err := retry.Do(ctx, func() error {
		c.waitForRateLimit()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return fmt.Errorf("GET %s: %w", reqURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			owners = nil
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return retry.StatusError(resp)
		}

		var body ownersResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return retry.Permanent(fmt.Errorf("decoding %s response: %w", endpoint, err))
		}

		raw := body.Users
		if kind == KindTeam {
			raw = body.Teams
		}
		owners = make([]Owner, 0, len(raw))
		for _, o := range raw {
			owners = append(owners, Owner{
				ID:     o.ID,
				Kind:   kind,
				Login:  o.Login,
				Name:   o.Name,
				URL:    o.URL,
				Avatar: o.Avatar,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s owners of %q: %w", kind, name, err)
	}
	return owners, nil
}

// waitForRateLimit sleeps until at least MinInterval has elapsed since
// the previous request, per https://crates.io/data-access.
func (c *Client) waitForRateLimit() {
	if c.MinInterval <= 0 {
		return
	}
	c.mu.Lock()
	next := c.lastReqAt.Add(c.MinInterval)
	now := time.Now()
	if wait := next.Sub(now); wait > 0 {
		c.lastReqAt = next
		c.mu.Unlock()
		time.Sleep(wait)
		return
	}
	c.lastReqAt = now
	c.mu.Unlock()
}
