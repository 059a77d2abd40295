// Package facebook talks to the Graph API page ratings edge.
package facebook

import (
	"context"
	"fmt"
	"strconv"
	"net/url"
	"strings"

	"review_sync/internal/adapters/provider"
)

const DefaultGraphBase = "https://graph.facebook.com/v19.0"

const ratingFields = "created_time,rating,recommendation_type,review_text,reviewer{id,name,picture},open_graph_story{id}"

type picture struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

type reviewer struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Picture picture `json:"picture"`
}

type story struct {
	ID string `json:"id"`
}

type rating struct {
	CreatedTime        string   `json:"created_time"` // 2017-04-19T16:32:45+0000
	Rating             *int     `json:"rating"`
	RecommendationType string   `json:"recommendation_type"` // positive|negative
	ReviewText         string   `json:"review_text"`
	Reviewer           reviewer `json:"reviewer"`
	OpenGraphStory     *story   `json:"open_graph_story"`
}

type ratingsPage struct {
	Data   []rating `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type page struct {
	ID                string  `json:"id"`
	OverallStarRating float64 `json:"overall_star_rating"`
	RatingCount       int     `json:"rating_count"`
}

type Client struct {
	http *provider.Client
	base string
}

func NewClient(hc *provider.Client, base string) *Client {
	if base == "" {
		base = DefaultGraphBase
	}
	return &Client{http: hc, base: strings.TrimRight(base, "/")}
}

// GetRatings fetches the first ratings page, or the page behind next when set.
func (c *Client) GetRatings(ctx context.Context, token, pageID, next string) (ratingsPage, error) {
	u := next
	if u == "" {
		q := url.Values{}
		q.Set("fields", ratingFields)
		q.Set("limit", strconv.Itoa(pageSize))
		u = fmt.Sprintf("%s/%s/ratings?%s", c.base, url.PathEscape(pageID), q.Encode())
	}
	var out ratingsPage
	return out, c.http.GetJSON(ctx, "ratings", u, map[string]string{"Authorization": "Bearer " + token}, &out)
}

func (c *Client) GetPage(ctx context.Context, token, pageID string) (page, error) {
	u := fmt.Sprintf("%s/%s?fields=overall_star_rating,rating_count", c.base, url.PathEscape(pageID))
	var out page
	return out, c.http.GetJSON(ctx, "page", u, map[string]string{"Authorization": "Bearer " + token}, &out)
}
