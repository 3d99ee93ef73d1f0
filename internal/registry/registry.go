// Package registry reads the ordered feed source list the ingester runs
// over: one CSV row per feed with optional genre override and cadence flag.
package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Feed is one registry entry. Daily marks the feed for daily-only runs.
type Feed struct {
	URL   string
	Genre string
	Daily bool
}

// Column headers recognized for each field. Registries come from hand-edited
// spreadsheets, so several spellings are accepted.
var (
	urlColumns   = []string{"SOURCE RSS FEED", "feed_url", "url", "rss", "RSS"}
	genreColumns = []string{"genre", "Genre", "GENRE", "category", "Category", "CATEGORY"}
	dailyColumns = []string{"daily", "Daily", "DAILY", "frequency", "Frequency"}
)

// Truthy values for the cadence flag, matched case-insensitively. Anything
// else, including absence, means "not daily-only".
var dailyTruthy = map[string]bool{
	"1": true, "true": true, "yes": true, "daily": true, "day": true,
}

// Load reads the registry file at path.
func Load(path string) ([]Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed registry: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a CSV registry, preserving row order and keeping the first
// occurrence of a duplicated URL.
func Parse(r io.Reader) ([]Feed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry header: %w", err)
	}

	urlIdx := columnIndex(header, urlColumns)
	if urlIdx < 0 {
		return nil, fmt.Errorf("registry has no feed URL column (looked for %s)", strings.Join(urlColumns, ", "))
	}
	genreIdx := columnIndex(header, genreColumns)
	dailyIdx := columnIndex(header, dailyColumns)

	var feeds []Feed
	seen := make(map[string]bool)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read registry row: %w", err)
		}

		url := field(row, urlIdx)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		feeds = append(feeds, Feed{
			URL:   url,
			Genre: field(row, genreIdx),
			Daily: dailyTruthy[strings.ToLower(field(row, dailyIdx))],
		})
	}
	return feeds, nil
}

func columnIndex(header []string, candidates []string) int {
	for _, c := range candidates {
		for i, h := range header {
			if strings.TrimSpace(h) == c {
				return i
			}
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
