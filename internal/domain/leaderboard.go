package domain

import (
	"sort"
	"time"
)

// DefaultPlayerName is used when a submission carries no player key.
const DefaultPlayerName = "Player"

// ScoreEntry represents a single kept submission on the leaderboard
type ScoreEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Score      int64     `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LeaderboardTable is the persisted leaderboard aggregate
type LeaderboardTable struct {
	Entries     []ScoreEntry `json:"entries"`
	LastUpdated time.Time    `json:"last_updated"`
}

// Source identifies which storage layer served a leaderboard read
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// LeaderboardView is a leaderboard read result tagged with the layer
// that produced it
type LeaderboardView struct {
	Entries     []ScoreEntry `json:"entries"`
	LastUpdated time.Time    `json:"last_updated"`
	Source      Source       `json:"source"`
}

// Normalize deduplicates entries by player name keeping the highest score,
// sorts descending by score and truncates to maxEntries. The sort is stable:
// entries with equal scores keep their stored order. Every adapter runs loaded
// data through this rather than trusting storage to be consistent.
func Normalize(entries []ScoreEntry, maxEntries int) []ScoreEntry {
	kept := make([]ScoreEntry, 0, len(entries))
	byName := make(map[string]int, len(entries))

	for _, entry := range entries {
		idx, seen := byName[entry.Name]
		if !seen {
			byName[entry.Name] = len(kept)
			kept = append(kept, entry)
			continue
		}
		if entry.Score > kept[idx].Score {
			kept[idx] = entry
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	if maxEntries > 0 && len(kept) > maxEntries {
		kept = kept[:maxEntries]
	}
	return kept
}
