package chart

import (
	"sort"
	"time"
)

// RankDaily orders one day's submissions: votes first, then Pro submitters
// win ties, then plays, then earliest submission. The ID comparison at the
// end makes the order total, so finalization is deterministic.
func RankDaily(subs []*ChartSubmission) []*ChartSubmission {
	ranked := make([]*ChartSubmission, len(subs))
	copy(ranked, subs)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		if a.IsPro != b.IsPro {
			return a.IsPro
		}
		if a.PlayCount != b.PlayCount {
			return a.PlayCount > b.PlayCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}

// WeeklyEntry is a track's aggregate over a trailing seven-day window.
type WeeklyEntry struct {
	TrackID        string
	VoteCount      int64
	PlayCount      int64
	FirstSubmitted time.Time
	Rank           int
}

// RankWeekly folds the window's submissions per track and orders the
// aggregates. Subscription status does not break ties across days; only
// accumulated votes and plays do.
func RankWeekly(subs []*ChartSubmission) []WeeklyEntry {
	byTrack := make(map[string]*WeeklyEntry)
	for _, sub := range subs {
		entry, ok := byTrack[sub.TrackID]
		if !ok {
			entry = &WeeklyEntry{TrackID: sub.TrackID, FirstSubmitted: sub.CreatedAt}
			byTrack[sub.TrackID] = entry
		}
		entry.VoteCount += sub.VoteCount
		entry.PlayCount += sub.PlayCount
		if sub.CreatedAt.Before(entry.FirstSubmitted) {
			entry.FirstSubmitted = sub.CreatedAt
		}
	}

	entries := make([]WeeklyEntry, 0, len(byTrack))
	for _, entry := range byTrack {
		entries = append(entries, *entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		if a.PlayCount != b.PlayCount {
			return a.PlayCount > b.PlayCount
		}
		if !a.FirstSubmitted.Equal(b.FirstSubmitted) {
			return a.FirstSubmitted.Before(b.FirstSubmitted)
		}
		return a.TrackID < b.TrackID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
