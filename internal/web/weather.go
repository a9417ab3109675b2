package web

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

type Weather struct {
	// City is the name that was asked for, not the station the service
	// matched.
	City        string
	Description string
	Temp        float64
	FeelsLike   float64
	Humidity    int
}

type WeatherClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewWeatherClient(client *http.Client, baseURL, apiKey string) *WeatherClient {
	return &WeatherClient{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *WeatherClient) Configured() bool {
	return c.apiKey != ""
}

type owmResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Current fetches current conditions for city in metric units.
func (c *WeatherClient) Current(ctx context.Context, city string) (*Weather, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	var data owmResponse
	if err := getJSON(ctx, c.http, c.baseURL+"/data/2.5/weather", q, &data); err != nil {
		return nil, err
	}

	w := &Weather{
		City:      city,
		Temp:      data.Main.Temp,
		FeelsLike: data.Main.FeelsLike,
		Humidity:  data.Main.Humidity,
	}
	if len(data.Weather) > 0 {
		w.Description = data.Weather[0].Description
	}

	return w, nil
}
