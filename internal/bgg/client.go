// Package bgg is a client for the BoardGameGeek XML API2
package bgg

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/mcoot/boardgame-groups/internal/model"
)

// DefaultBaseURL is the public XML API2 endpoint
const DefaultBaseURL = "https://boardgamegeek.com/xmlapi2"

// Config holds configuration for the BoardGameGeek client
type Config struct {
	BaseURL string

	// Timeout bounds each HTTP attempt
	Timeout time.Duration

	// Retry policy for transport errors, 429 and 5xx responses
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// RateLimit is the sustained request rate in requests per second.
	// Zero disables limiting.
	RateLimit float64
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     15 * time.Second,
		RateLimit:       2,
	}
}

// SearchResult is one hit of a name search
type SearchResult struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	YearPublished int    `json:"year_published,omitempty"`
}

// Client talks to BoardGameGeek
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config
	logger     *slog.Logger
}

// New creates a new Client
func New(cfg Config, logger *slog.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "bgg")),
	}
}

// Search returns board games whose names match query
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var resp searchResponse
	err := c.get(ctx, "search", url.Values{
		"query": {query},
		"type":  {"boardgame"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, SearchResult{
			ID:            item.ID,
			Name:          primaryName(item.Names),
			YearPublished: item.YearPublished.Value,
		})
	}
	return results, nil
}

// FetchGame looks a game up by exact name and returns it mapped onto a
// catalog entry (without an ID). Zero or several matches are
// ErrGameNotFound.
func (c *Client) FetchGame(ctx context.Context, name string) (*model.Game, error) {
	var search searchResponse
	err := c.get(ctx, "search", url.Values{
		"query": {name},
		"type":  {"boardgame"},
		"exact": {"1"},
	}, &search)
	if err != nil {
		return nil, err
	}
	if len(search.Items) != 1 {
		return nil, fmt.Errorf("%w: %q matched %d games", model.ErrGameNotFound, name, len(search.Items))
	}

	var thing thingResponse
	err = c.get(ctx, "thing", url.Values{
		"id":   {search.Items[0].ID},
		"type": {"boardgame"},
	}, &thing)
	if err != nil {
		return nil, err
	}
	if len(thing.Items) == 0 {
		return nil, fmt.Errorf("%w: %q", model.ErrGameNotFound, name)
	}

	item := thing.Items[0]
	return &model.Game{
		GameDetails: model.GameDetails{
			Name:        model.NormalizeGameName(primaryName(item.Names)),
			Description: strings.TrimSpace(html.UnescapeString(item.Description)),
			Thumbnail:   strings.TrimSpace(item.Thumbnail),
			Image:       strings.TrimSpace(item.Image),
			MinPlayers:  item.MinPlayers.Value,
			MaxPlayers:  item.MaxPlayers.Value,
			PlayingTime: item.PlayingTime.Value,
		},
		Source:     model.GameSourceBGG,
		ExternalID: item.ID,
	}, nil
}

// get performs one API call, retrying with exponential backoff. Failures
// are wrapped in model.ErrExternalLookup.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/xml")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusAccepted,
			resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode >= 500:
			// 202 means the request was queued upstream; ask again later
			return fmt.Errorf("%s returned HTTP %d", endpoint, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%s returned HTTP %d", endpoint, resp.StatusCode))
		}

		if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", endpoint, err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialInterval
	policy.Multiplier = 2
	policy.MaxInterval = c.cfg.MaxInterval
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxRetries), ctx),
		func(err error, wait time.Duration) {
			c.logger.WarnContext(ctx, "retrying BoardGameGeek request",
				slog.String("endpoint", endpoint),
				slog.Duration("wait", wait),
				slog.Any("error", err))
		})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", model.ErrExternalLookup, err)
	}
	return nil
}

// primaryName picks the primary name from a list of localised names, falling
// back to the first one
func primaryName(names []nameValue) string {
	for _, n := range names {
		if n.Type == "primary" {
			return n.Value
		}
	}
	if len(names) > 0 {
		return names[0].Value
	}
	return ""
}

type nameValue struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type intValue struct {
	Value int `xml:"value,attr"`
}

type searchResponse struct {
	XMLName xml.Name `xml:"items"`
	Total   int      `xml:"total,attr"`
	Items   []struct {
		ID            string      `xml:"id,attr"`
		Names         []nameValue `xml:"name"`
		YearPublished intValue    `xml:"yearpublished"`
	} `xml:"item"`
}

type thingResponse struct {
	XMLName xml.Name    `xml:"items"`
	Items   []thingItem `xml:"item"`
}

type thingItem struct {
	ID          string      `xml:"id,attr"`
	Thumbnail   string      `xml:"thumbnail"`
	Image       string      `xml:"image"`
	Names       []nameValue `xml:"name"`
	Description string      `xml:"description"`
	MinPlayers  intValue    `xml:"minplayers"`
	MaxPlayers  intValue    `xml:"maxplayers"`
	PlayingTime intValue    `xml:"playingtime"`
}
