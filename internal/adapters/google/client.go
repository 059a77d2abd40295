// Package google talks to the Google Business Profile (My Business v4) review API.
package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"review_sync/internal/adapters/provider"
)

const (
	DefaultAPIBase      = "https://mybusiness.googleapis.com/v4"
	DefaultAccountsBase = "https://mybusinessaccountmanagement.googleapis.com/v1"
)

// ---- wire types ----

type account struct {
	Name        string `json:"name"` // accounts/{id}
	AccountName string `json:"accountName"`
}

type accountsPage struct {
	Accounts      []account `json:"accounts"`
	NextPageToken string    `json:"nextPageToken"`
}

type reviewer struct {
	DisplayName     string `json:"displayName"`
	ProfilePhotoURL string `json:"profilePhotoUrl"`
	IsAnonymous     bool   `json:"isAnonymous"`
}

type reviewReply struct {
	Comment    string     `json:"comment"`
	UpdateTime *time.Time `json:"updateTime"`
}

type review struct {
	Name        string       `json:"name"` // accounts/{a}/locations/{l}/reviews/{r}
	ReviewID    string       `json:"reviewId"`
	Reviewer    reviewer     `json:"reviewer"`
	StarRating  string       `json:"starRating"` // ONE..FIVE
	Comment     string       `json:"comment"`
	CreateTime  time.Time    `json:"createTime"`
	UpdateTime  time.Time    `json:"updateTime"`
	ReviewReply *reviewReply `json:"reviewReply"`
}

type reviewsPage struct {
	Reviews          []review `json:"reviews"`
	AverageRating    float64  `json:"averageRating"`
	TotalReviewCount int      `json:"totalReviewCount"`
	NextPageToken    string   `json:"nextPageToken"`
}

// Client is raw access to the API; it holds no business logic.
type Client struct {
	http         *provider.Client
	apiBase      string
	accountsBase string
}

func NewClient(hc *provider.Client, apiBase, accountsBase string) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if accountsBase == "" {
		accountsBase = DefaultAccountsBase
	}
	return &Client{
		http:         hc,
		apiBase:      strings.TrimRight(apiBase, "/"),
		accountsBase: strings.TrimRight(accountsBase, "/"),
	}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (c *Client) ListAccounts(ctx context.Context, token string) ([]account, error) {
	var out accountsPage
	if err := c.http.GetJSON(ctx, "accounts", c.accountsBase+"/accounts", bearer(token), &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// ListReviews fetches one page of reviews for parent (accounts/{a}/locations/{l}).
func (c *Client) ListReviews(ctx context.Context, token, parent string, pageSize int, pageToken string) (reviewsPage, error) {
	q := url.Values{}
	q.Set("pageSize", fmt.Sprint(pageSize))
	q.Set("orderBy", "updateTime desc")
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	u := fmt.Sprintf("%s/%s/reviews?%s", c.apiBase, parent, q.Encode())
	var out reviewsPage
	return out, c.http.GetJSON(ctx, "reviews", u, bearer(token), &out)
}

// PutReply creates or replaces the owner reply of one review.
func (c *Client) PutReply(ctx context.Context, token, reviewName, comment string) error {
	u := fmt.Sprintf("%s/%s/reply", c.apiBase, reviewName)
	return c.http.Do(ctx, http.MethodPut, "reply", u, bearer(token), map[string]string{"comment": comment}, nil)
}
