package chart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestRankDaily(t *testing.T) {
	early := day(10).Add(9 * time.Hour)
	late := day(10).Add(15 * time.Hour)

	subs := []*ChartSubmission{
		{ID: "a", VoteCount: 5, PlayCount: 100, CreatedAt: early},
		{ID: "b", VoteCount: 9, PlayCount: 10, CreatedAt: late},
		{ID: "c", VoteCount: 5, PlayCount: 100, CreatedAt: early, IsPro: true},
		{ID: "d", VoteCount: 5, PlayCount: 300, CreatedAt: late},
		{ID: "e", VoteCount: 5, PlayCount: 100, CreatedAt: late},
	}

	ranked := RankDaily(subs)

	ids := make([]string, 0, len(ranked))
	for _, sub := range ranked {
		ids = append(ids, sub.ID)
	}

	// votes first, then Pro, then plays, then earliest submission
	require.Equal(t, []string{"b", "c", "d", "a", "e"}, ids)

	// input order is untouched
	require.Equal(t, "a", subs[0].ID)
}

func TestRankWeekly(t *testing.T) {
	subs := []*ChartSubmission{
		{ID: "m1", TrackID: "t1", VoteCount: 3, PlayCount: 10, CreatedAt: day(10)},
		{ID: "m2", TrackID: "t1", VoteCount: 4, PlayCount: 20, CreatedAt: day(12)},
		{ID: "o1", TrackID: "t2", VoteCount: 7, PlayCount: 5, CreatedAt: day(11), IsPro: true},
		{ID: "p1", TrackID: "t3", VoteCount: 7, PlayCount: 6, CreatedAt: day(13)},
	}

	entries := RankWeekly(subs)
	require.Len(t, entries, 3)

	// t1 accumulates across days; plays break the t2/t3 tie, Pro does not
	require.Equal(t, "t3", entries[0].TrackID)
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, "t2", entries[1].TrackID)
	require.Equal(t, "t1", entries[2].TrackID)
	require.Equal(t, int64(7), entries[2].VoteCount)
	require.Equal(t, int64(30), entries[2].PlayCount)
	require.True(t, entries[2].FirstSubmitted.Equal(day(10)))
}
