package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const MaxHeadlines = 3

type NewsClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	country string
}

func NewNewsClient(client *http.Client, baseURL, apiKey, country string) *NewsClient {
	if country == "" {
		country = "us"
	}
	return &NewsClient{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		country: country,
	}
}

func (c *NewsClient) Configured() bool {
	return c.apiKey != ""
}

type newsResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title string `json:"title"`
	} `json:"articles"`
}

// Headlines returns up to MaxHeadlines titles for category with the
// trailing " - Source" attribution removed.
func (c *NewsClient) Headlines(ctx context.Context, category string) ([]string, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("country", c.country)
	q.Set("category", category)
	q.Set("pageSize", fmt.Sprint(MaxHeadlines))
	q.Set("apiKey", c.apiKey)

	var data newsResponse
	if err := getJSON(ctx, c.http, c.baseURL+"/v2/top-headlines", q, &data); err != nil {
		return nil, err
	}

	var titles []string
	for _, a := range data.Articles {
		if len(titles) == MaxHeadlines {
			break
		}
		title := strings.TrimSpace(a.Title)
		if title == "" {
			title = "No title"
		}
		titles = append(titles, StripSource(title))
	}

	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: no articles", ErrUnavailable)
	}

	return titles, nil
}

// StripSource drops the last " - Source" suffix from a headline.
func StripSource(title string) string {
	if i := strings.LastIndex(title, " - "); i > 0 {
		return strings.TrimSpace(title[:i])
	}
	return title
}
