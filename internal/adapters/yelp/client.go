// Package yelp talks to the Yelp Fusion v3 API.
package yelp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"review_sync/internal/adapters/provider"
)

const DefaultAPIBase = "https://api.yelp.com/v3"

type user struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

type review struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Rating      int    `json:"rating"`
	TimeCreated string `json:"time_created"` // "2016-08-29 00:41:13"
	User        user   `json:"user"`
}

type reviewsResponse struct {
	Reviews []review `json:"reviews"`
	Total   int      `json:"total"`
}

type business struct {
	ID          string  `json:"id"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	URL         string  `json:"url"`
}

type Client struct {
	http *provider.Client
	base string
}

func NewClient(hc *provider.Client, base string) *Client {
	if base == "" {
		base = DefaultAPIBase
	}
	return &Client{http: hc, base: strings.TrimRight(base, "/")}
}

func (c *Client) GetReviews(ctx context.Context, apiKey, businessID string) (reviewsResponse, error) {
	u := fmt.Sprintf("%s/businesses/%s/reviews?sort_by=newest", c.base, url.PathEscape(businessID))
	var out reviewsResponse
	return out, c.http.GetJSON(ctx, "reviews", u, map[string]string{"Authorization": "Bearer " + apiKey}, &out)
}

func (c *Client) GetBusiness(ctx context.Context, apiKey, businessID string) (business, error) {
	u := fmt.Sprintf("%s/businesses/%s", c.base, url.PathEscape(businessID))
	var out business
	return out, c.http.GetJSON(ctx, "business", u, map[string]string{"Authorization": "Bearer " + apiKey}, &out)
}
