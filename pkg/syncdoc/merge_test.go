package syncdoc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeMapsServerWinsOnOverlap(t *testing.T) {
	local := Document{
		Progress:        map[string]float64{"ep1": 120, "ep2": 30},
		SortPreferences: map[string]string{"pod1": "oldest", "pod2": "newest"},
	}
	server := Document{
		Progress:        map[string]float64{"ep1": 300, "ep3": 10},
		SortPreferences: map[string]string{"pod1": "newest"},
	}

	merged := Merge(local, server)

	assert.Equal(t, float64(300), merged.Progress["ep1"], "server wins on overlap")
	assert.Equal(t, float64(30), merged.Progress["ep2"], "local-only keys retained")
	assert.Equal(t, float64(10), merged.Progress["ep3"])
	assert.Equal(t, "newest", merged.SortPreferences["pod1"])
	assert.Equal(t, "newest", merged.SortPreferences["pod2"])
}

func TestMergeFavoritesUnionLaw(t *testing.T) {
	local := Document{Favorites: Favorites{Podcasts: []string{"a", "b"}, Episodes: []string{"e1"}}}
	server := Document{Favorites: Favorites{Podcasts: []string{"b", "c"}, Episodes: []string{"e2"}}}

	merged := Merge(local, server)

	for _, want := range append(local.Favorites.Podcasts, server.Favorites.Podcasts...) {
		assert.Contains(t, merged.Favorites.Podcasts, want)
	}
	for _, want := range append(local.Favorites.Episodes, server.Favorites.Episodes...) {
		assert.Contains(t, merged.Favorites.Episodes, want)
	}
	assert.Len(t, merged.Favorites.Podcasts, 3)
}

func TestMergeHistoryDedup(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	shared := HistoryEvent{EpisodeID: "ep1", Timestamp: t0}
	localOnly := HistoryEvent{EpisodeID: "ep2", Timestamp: t1}
	// Same episode, different timestamp: a distinct event, not a duplicate.
	replay := HistoryEvent{EpisodeID: "ep1", Timestamp: t1}

	local := Document{History: []HistoryEvent{shared, localOnly}}
	server := Document{History: []HistoryEvent{shared, replay}}

	merged := Merge(local, server)

	assert.Equal(t, []HistoryEvent{shared, replay, localOnly}, merged.History)
}

func TestMergeIsFixedPoint(t *testing.T) {
	local := Document{
		Progress:        map[string]float64{"ep1": 12},
		History:         []HistoryEvent{{EpisodeID: "ep1", Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}},
		Favorites:       Favorites{Podcasts: []string{"a"}},
		SortPreferences: map[string]string{"pod1": "newest"},
	}
	server := Document{
		Progress:  map[string]float64{"ep1": 40, "ep2": 7},
		Favorites: Favorites{Podcasts: []string{"b"}, Episodes: []string{"e9"}},
	}

	merged := Merge(local, server)
	again := Merge(merged, merged)

	assert.Equal(t, merged, again, "merging a merge with itself must be a no-op")
}

func TestMergeEmptyDocuments(t *testing.T) {
	merged := Merge(Document{}, Document{})
	assert.Equal(t, Document{}, merged)

	local := Document{Favorites: Favorites{Podcasts: []string{"a"}}}
	merged = Merge(local, Document{})
	assert.Equal(t, []string{"a"}, merged.Favorites.Podcasts)
}
