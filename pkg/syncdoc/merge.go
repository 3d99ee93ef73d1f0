package syncdoc

// Merge reconciles a client-local document with the server's stored one.
// Field rules:
//
//   - Progress and SortPreferences: union of keys, server value wins where
//     both sides have the key.
//   - Favorites: set union; favoriting on either side sticks.
//   - History: server events first, then local events not already present,
//     de-duplicated by (episode id, timestamp). No reordering.
//
// Merge is idempotent: feeding its output back as both inputs returns the
// same document.
func Merge(local, server Document) Document {
	merged := Document{
		Progress:        mergeMaps(local.Progress, server.Progress),
		SortPreferences: mergeStringMaps(local.SortPreferences, server.SortPreferences),
		History:         mergeHistory(local.History, server.History),
	}
	merged.Favorites = Favorites{
		Podcasts: unionStrings(server.Favorites.Podcasts, local.Favorites.Podcasts),
		Episodes: unionStrings(server.Favorites.Episodes, local.Favorites.Episodes),
	}
	return merged
}

func mergeMaps(local, server map[string]float64) map[string]float64 {
	if local == nil && server == nil {
		return nil
	}
	out := make(map[string]float64, len(local)+len(server))
	for k, v := range local {
		out[k] = v
	}
	for k, v := range server {
		out[k] = v
	}
	return out
}

func mergeStringMaps(local, server map[string]string) map[string]string {
	if local == nil && server == nil {
		return nil
	}
	out := make(map[string]string, len(local)+len(server))
	for k, v := range local {
		out[k] = v
	}
	for k, v := range server {
		out[k] = v
	}
	return out
}

// unionStrings keeps first-side order, appending unseen items from the
// second side.
func unionStrings(first, second []string) []string {
	if first == nil && second == nil {
		return nil
	}
	seen := make(map[string]bool, len(first)+len(second))
	out := make([]string, 0, len(first)+len(second))
	for _, lists := range [][]string{first, second} {
		for _, s := range lists {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

type historyKey struct {
	episodeID string
	unixNano  int64
}

func mergeHistory(local, server []HistoryEvent) []HistoryEvent {
	if local == nil && server == nil {
		return nil
	}
	seen := make(map[historyKey]bool, len(local)+len(server))
	out := make([]HistoryEvent, 0, len(local)+len(server))
	for _, events := range [][]HistoryEvent{server, local} {
		for _, e := range events {
			k := historyKey{episodeID: e.EpisodeID, unixNano: e.Timestamp.UnixNano()}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, e)
		}
	}
	return out
}
