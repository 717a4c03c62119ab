package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
)

// maxResponseBytes bounds how much of a remote body we are willing to read.
const maxResponseBytes = 1 << 20

// Client issues protocol requests against a single remote endpoint. It
// returns the raw response body so callers can pass it through unmodified.
type Client struct {
	HTTP *http.Client
}

func NewClient() *Client {
	return &Client{HTTP: &http.Client{}}
}

// do runs a request and interprets the remote's answer: 200 is a hit,
// 204 and 404 are misses, anything else is an endpoint failure.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return nil, nil
		}
		return body, nil
	case http.StatusNoContent, http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, rawURL string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// HasJoined asks the endpoint's sessionserver whether the player has joined
// the server. Endpoints without a session URL always miss.
func (c *Client) HasJoined(ctx context.Context, ep domain.FallbackEndpoint, username, serverID, ip string) ([]byte, error) {
	if ep.SessionURL == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("username", username)
	q.Set("serverId", serverID)
	if ip != "" {
		q.Set("ip", ip)
	}
	return c.get(ctx, strings.TrimSuffix(ep.SessionURL, "/")+"/session/minecraft/hasJoined?"+q.Encode())
}

// ProfileByID fetches a profile document by undashed uuid.
func (c *Client) ProfileByID(ctx context.Context, ep domain.FallbackEndpoint, id string, unsigned bool) ([]byte, error) {
	if ep.SessionURL == "" {
		return nil, nil
	}
	u := strings.TrimSuffix(ep.SessionURL, "/") + "/session/minecraft/profile/" + url.PathEscape(id)
	if !unsigned {
		u += "?unsigned=false"
	}
	return c.get(ctx, u)
}

// ProfileByName resolves a player name to a {id,name} stub.
func (c *Client) ProfileByName(ctx context.Context, ep domain.FallbackEndpoint, name string) ([]byte, error) {
	if ep.AccountURL == "" {
		return nil, nil
	}
	return c.get(ctx, strings.TrimSuffix(ep.AccountURL, "/")+"/users/profiles/minecraft/"+url.PathEscape(name))
}

// ProfilesByNames performs a bulk name lookup.
func (c *Client) ProfilesByNames(ctx context.Context, ep domain.FallbackEndpoint, names []string) ([]byte, error) {
	if ep.AccountURL == "" {
		return nil, nil
	}
	return c.postJSON(ctx, strings.TrimSuffix(ep.AccountURL, "/")+"/profiles/minecraft", names)
}

// ProfileLookup resolves a name through the endpoint's services API.
func (c *Client) ProfileLookup(ctx context.Context, ep domain.FallbackEndpoint, name string) ([]byte, error) {
	if ep.ServicesURL == "" {
		return nil, nil
	}
	return c.get(ctx, strings.TrimSuffix(ep.ServicesURL, "/")+"/minecraft/profile/lookup/name/"+url.PathEscape(name))
}
