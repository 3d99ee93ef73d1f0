// Package feed turns raw feed documents into the canonical podcast/episode
// shape and re-serves stored podcasts as RSS.
package feed

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
)

// ParseError is a feed-level failure: nothing from this document is usable
// and the whole cycle for the feed is aborted.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse feed: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// PodcastMeta is the normalized feed-level metadata. Empty strings mean the
// source did not provide the field.
type PodcastMeta struct {
	Title       string
	Author      string
	Description string
	ImageURL    string
	Slug        string
	Genres      []string
}

// EpisodeMeta is one normalized entry. DurationSeconds is nil when the
// source value was absent or unparseable; zero is a real duration.
type EpisodeMeta struct {
	GUID            string
	Title           string
	Description     string
	AudioURL        string
	ImageURL        string
	PubDate         *time.Time
	DurationSeconds *int
}

// Parse normalizes a raw feed document. A document-level failure returns a
// ParseError; a malformed entry is skipped with a warning and never blocks
// its siblings. Entries sharing an identity key are collapsed, the later one
// in document order winning.
func Parse(data []byte, genreOverride string, logger logrus.FieldLogger) (*PodcastMeta, []EpisodeMeta, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, &ParseError{Err: err}
	}

	meta := &PodcastMeta{
		Title:       parsed.Title,
		Author:      feedAuthor(parsed),
		Description: feedDescription(parsed),
		ImageURL:    feedImage(parsed),
		Slug:        Slugify(parsed.Title),
		Genres:      feedGenres(parsed, genreOverride),
	}

	var episodes []EpisodeMeta
	index := make(map[string]int)
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		ep, ok := normalizeItem(item)
		if !ok {
			logger.WithField("item_title", item.Title).Warn("Skipping feed entry with no usable identity")
			continue
		}
		if i, dup := index[ep.GUID]; dup {
			episodes[i] = ep
			continue
		}
		index[ep.GUID] = len(episodes)
		episodes = append(episodes, ep)
	}

	return meta, episodes, nil
}

// normalizeItem maps one entry. Identity is guid, then enclosure URL, then
// link; an entry with none of the three cannot be deduplicated and is
// dropped.
func normalizeItem(item *gofeed.Item) (EpisodeMeta, bool) {
	audioURL := ""
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		audioURL = item.Enclosures[0].URL
	}

	guid := item.GUID
	if guid == "" {
		guid = audioURL
	}
	if guid == "" {
		guid = item.Link
	}
	if guid == "" {
		return EpisodeMeta{}, false
	}

	imageURL := ""
	if item.ITunesExt != nil && item.ITunesExt.Image != "" {
		imageURL = item.ITunesExt.Image
	} else if item.Image != nil {
		imageURL = item.Image.URL
	}

	var duration *int
	if item.ITunesExt != nil {
		duration = ParseDuration(item.ITunesExt.Duration)
	}

	return EpisodeMeta{
		GUID:            guid,
		Title:           item.Title,
		Description:     item.Description,
		AudioURL:        audioURL,
		ImageURL:        imageURL,
		PubDate:         item.PublishedParsed,
		DurationSeconds: duration,
	}, true
}

// ParseDuration normalizes an itunes:duration value to whole seconds.
// Accepts plain seconds and hh:mm:ss / mm:ss clock forms. Returns nil for
// anything unparseable so "unknown" never becomes zero.
func ParseDuration(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if !strings.Contains(s, ":") {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil
		}
		return &n
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil
		}
		total = total*60 + n
	}
	return &total
}

func feedAuthor(f *gofeed.Feed) string {
	if f.ITunesExt != nil && f.ITunesExt.Author != "" {
		return f.ITunesExt.Author
	}
	if f.Author != nil {
		return f.Author.Name
	}
	return ""
}

func feedDescription(f *gofeed.Feed) string {
	if f.Description != "" {
		return f.Description
	}
	if f.ITunesExt != nil {
		return f.ITunesExt.Subtitle
	}
	return ""
}

func feedImage(f *gofeed.Feed) string {
	if f.Image != nil && f.Image.URL != "" {
		return f.Image.URL
	}
	if f.ITunesExt != nil {
		return f.ITunesExt.Image
	}
	return ""
}

// feedGenres collects itunes categories (with subcategories), falling back
// to plain RSS categories, de-duplicated case-insensitively in document
// order. A registry override replaces whatever the feed declares.
func feedGenres(f *gofeed.Feed, override string) []string {
	if override != "" {
		var genres []string
		for _, g := range strings.Split(override, ",") {
			if g = strings.TrimSpace(g); g != "" {
				genres = append(genres, g)
			}
		}
		return genres
	}

	var raw []string
	if f.ITunesExt != nil {
		for _, cat := range f.ITunesExt.Categories {
			if cat == nil {
				continue
			}
			raw = append(raw, cat.Text)
			if cat.Subcategory != nil {
				raw = append(raw, cat.Subcategory.Text)
			}
		}
	}
	if len(raw) == 0 {
		raw = append(raw, f.Categories...)
	}

	seen := make(map[string]bool)
	var genres []string
	for _, g := range raw {
		if g == "" || seen[strings.ToLower(g)] {
			continue
		}
		seen[strings.ToLower(g)] = true
		genres = append(genres, g)
	}
	return genres
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugHyphens  = regexp.MustCompile(`[\s_-]+`)
	slugTrimEnds = regexp.MustCompile(`^-+|-+$`)
)

// Slugify builds the URL slug the front end queries by.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	return slugTrimEnds.ReplaceAllString(slug, "")
}
