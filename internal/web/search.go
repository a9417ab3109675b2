package web

import (
	"net/url"
	"strings"
)

func GoogleSearchURL(query string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(query)
}

func YouTubeSearchURL(query string) string {
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
}

// WikipediaURL points at the English article for topic, letting Wikipedia
// resolve redirects.
func WikipediaURL(topic string) string {
	title := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	return "https://en.wikipedia.org/wiki/Special:Search/" + url.PathEscape(title)
}
