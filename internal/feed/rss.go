package feed

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/eduncan911/podcast"
	"podcastdir/internal/models"
)

func getBaseURL(r *http.Request) string {
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		return baseURL
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS re-serves a stored podcast as an RSS document. Episodes
// without an enclosure are left out; a feed item needs a playable URL.
func GenerateRSS(p *models.Podcast, episodes []models.Episode, r *http.Request) (string, error) {
	baseURL := getBaseURL(r)

	title := p.FeedURL
	if p.Title != nil && *p.Title != "" {
		title = *p.Title
	}
	description := title
	if p.Description != nil && *p.Description != "" {
		description = *p.Description
	}

	link := fmt.Sprintf("%s/rss/%d", baseURL, p.ID)
	if p.Slug != nil && *p.Slug != "" {
		link = fmt.Sprintf("%s/rss/%s", baseURL, *p.Slug)
	}

	now := time.Now()
	out := podcast.New(title, link, description, nil, &now)
	if p.Author != nil && *p.Author != "" {
		out.IAuthor = *p.Author
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		out.AddImage(*p.ImageURL)
	}

	for i := range episodes {
		ep := &episodes[i]
		if ep.AudioURL == nil || *ep.AudioURL == "" {
			continue
		}

		item := podcast.Item{
			Title:       stringOr(ep.Title, ep.GUID),
			Description: stringOr(ep.Description, stringOr(ep.Title, ep.GUID)),
			PubDate:     ep.PubDate,
			GUID:        ep.GUID,
		}
		item.AddEnclosure(*ep.AudioURL, enclosureType(*ep.AudioURL), 0)
		if ep.DurationSeconds != nil {
			item.AddDuration(int64(*ep.DurationSeconds))
		}
		if ep.ImageURL != nil && *ep.ImageURL != "" {
			item.AddImage(*ep.ImageURL)
		}
		if _, err := out.AddItem(item); err != nil {
			return "", err
		}
	}

	return out.String(), nil
}

func enclosureType(audioURL string) podcast.EnclosureType {
	switch {
	case strings.HasSuffix(audioURL, ".m4a"):
		return podcast.M4A
	case strings.HasSuffix(audioURL, ".m4v"):
		return podcast.M4V
	case strings.HasSuffix(audioURL, ".mp4"):
		return podcast.MP4
	default:
		return podcast.MP3
	}
}

func stringOr(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}
	return fallback
}
