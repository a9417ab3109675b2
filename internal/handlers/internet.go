package handlers

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"iveri/internal/nlu"
	"iveri/internal/web"
)

const (
	weatherNotConfigured = "Weather service is not configured. Get a free API key from openweathermap.org and set WEATHER_API_KEY in your .env file."
	weatherTimeout       = "The weather service is taking too long to respond. Please try again."
	weatherTrouble       = "I'm having trouble getting the weather right now. Please try again later."
	newsNotConfigured    = "News service is not configured. Get a free API key from newsapi.org and set NEWS_API_KEY in your .env file."
	newsTimeout          = "The news service is taking too long to respond. Please try again."
	newsUnavailable      = "I couldn't fetch the news right now. Please try again later."
	newsTrouble          = "I'm having trouble getting the news right now. Please try again later."
)

var cityStopWords = []string{"the", "today", "now", "please", "weather"}

// newsCategories maps spoken keywords to NewsAPI categories, first hit wins.
var newsCategories = []struct {
	keywords []string
	category string
}{
	{[]string{"tech", "technology"}, "technology"},
	{[]string{"sport"}, "sports"},
	{[]string{"business", "finance"}, "business"},
	{[]string{"entertainment", "celebrity"}, "entertainment"},
	{[]string{"health"}, "health"},
	{[]string{"science"}, "science"},
}

type Weather interface {
	Current(ctx context.Context, city string) (*web.Weather, error)
}

type News interface {
	Headlines(ctx context.Context, category string) ([]string, error)
}

type InternetDeps struct {
	Weather     Weather
	News        News
	Desktop     URLOpener
	DefaultCity string
	Logger      *log.Logger
}

// URLOpener opens a URL in the user's browser.
type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}

// Internet answers weather and news questions and "google <query>".
func Internet(deps InternetDeps) *nlu.RuleSet {
	if deps.DefaultCity == "" {
		deps.DefaultCity = "London"
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	r := internetRules{deps}

	return nlu.NewRuleSet("internet",
		nlu.Rule{Name: "weather", Match: nlu.Contains("weather"), Act: r.weather},
		nlu.Rule{Name: "news", Match: nlu.Words("news", "headlines"), Act: r.news},
		nlu.Rule{
			Name:  "google",
			Match: nlu.All(nlu.Contains("google "), nlu.Not(nlu.Contains("open google"))),
			Act:   r.google,
		},
	)
}

type internetRules struct {
	InternetDeps
}

// WeatherCity extracts the city from a weather question, or "" when none
// is named.
func WeatherCity(text string) string {
	city := ""
	for _, sep := range []string{" in ", " for ", " at "} {
		if strings.Contains(text, sep) {
			city = nlu.AfterLast(text, sep)
			break
		}
	}
	return nlu.StripWords(city, cityStopWords...)
}

// NewsCategory picks the NewsAPI category named in text.
func NewsCategory(text string) string {
	for _, c := range newsCategories {
		for _, k := range c.keywords {
			if strings.Contains(text, k) {
				return c.category
			}
		}
	}
	return "general"
}

func (r internetRules) weather(ctx context.Context, text string) (string, bool, error) {
	city := WeatherCity(text)
	if city == "" {
		city = r.DefaultCity
	}

	w, err := r.Weather.Current(ctx, city)
	switch {
	case errors.Is(err, web.ErrNotConfigured):
		return weatherNotConfigured, true, nil
	case errors.Is(err, web.ErrNotFound):
		return fmt.Sprintf("I couldn't find weather information for %s. Please check the city name.", city), true, nil
	case errors.Is(err, web.ErrTimeout):
		return weatherTimeout, true, nil
	case err != nil:
		r.Logger.Warn("Weather lookup failed", "city", city, "err", err)
		return weatherTrouble, true, nil
	}

	return fmt.Sprintf("The weather in %s is currently %s with a temperature of %.0f°C, feels like %.0f°C. Humidity is at %d%%.",
		w.City, w.Description, w.Temp, w.FeelsLike, w.Humidity), true, nil
}

func (r internetRules) news(ctx context.Context, text string) (string, bool, error) {
	category := NewsCategory(text)

	titles, err := r.News.Headlines(ctx, category)
	switch {
	case errors.Is(err, web.ErrNotConfigured):
		return newsNotConfigured, true, nil
	case errors.Is(err, web.ErrTimeout):
		return newsTimeout, true, nil
	case errors.Is(err, web.ErrUnavailable), errors.Is(err, web.ErrNotFound):
		return newsUnavailable, true, nil
	case err != nil:
		r.Logger.Warn("News lookup failed", "category", category, "err", err)
		return newsTrouble, true, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are the top %d %s headlines:", len(titles), category)
	for i, t := range titles {
		fmt.Fprintf(&b, " %d. %s.", i+1, strings.TrimRight(t, "."))
	}
	return b.String(), true, nil
}

func (r internetRules) google(ctx context.Context, text string) (string, bool, error) {
	query := nlu.After(text, "google ")
	if query == "" {
		return "", false, nil
	}

	if err := r.Desktop.OpenURL(ctx, web.GoogleSearchURL(query)); err != nil {
		return "", true, fmt.Errorf("open google search: %w", err)
	}
	return fmt.Sprintf("I've opened Google search for '%s' in your browser.", query), true, nil
}
