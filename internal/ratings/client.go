// Package ratings looks up aggregate review counts for a book from a
// Goodreads-compatible review_counts endpoint.
package ratings

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
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ayush/bookreview/internal/models"
)

// ErrNoRating means the service answered but knows nothing about the ISBN.
var ErrNoRating = errors.New("no rating for isbn")

// Client calls the rating service over HTTP. Every call is bounded by the
// client timeout and goes through a circuit breaker.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[*models.Rating]
}

// NewClient builds a client. The breaker opens after five consecutive
// failures and probes again after 30 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker[*models.Rating](gobreaker.Settings{
		Name:        "ratings-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoRating)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cb:         cb,
	}
}

// Lookup returns the aggregate rating for isbn.
func (c *Client) Lookup(ctx context.Context, isbn string) (*models.Rating, error) {
	return c.cb.Execute(func() (*models.Rating, error) {
		return c.fetch(ctx, isbn)
	})
}

type reviewCountsResponse struct {
	Books []struct {
		ISBN             string     `json:"isbn"`
		ReviewsCount     flexNumber `json:"reviews_count"`
		WorkRatingsCount flexNumber `json:"work_ratings_count"`
		AverageRating    flexNumber `json:"average_rating"`
	} `json:"books"`
}

func (c *Client) fetch(ctx context.Context, isbn string) (*models.Rating, error) {
	params := url.Values{}
	params.Set("isbns", isbn)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ratings request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ratings lookup %s: %w", isbn, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoRating
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ratings service returned %d: %s", resp.StatusCode, string(body))
	}

	var payload reviewCountsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ratings decode: %w", err)
	}
	if len(payload.Books) == 0 {
		return nil, ErrNoRating
	}

	b := payload.Books[0]
	return &models.Rating{
		ISBN:          isbn,
		AverageRating: float64(b.AverageRating),
		RatingsCount:  int(b.WorkRatingsCount),
		ReviewsCount:  int(b.ReviewsCount),
	}, nil
}

// flexNumber accepts both 3.81 and "3.81"; the service quotes averages.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", b)
	}
	*n = flexNumber(f)
	return nil
}
