package chart

import (
	"context"
	"testing"
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trackpeer-core/pkg/config"
	"trackpeer-core/pkg/errutil"
	"trackpeer-core/services/artist"
	"trackpeer-core/services/genre"
	"trackpeer-core/services/identity"
	"trackpeer-core/services/testutil"
	"trackpeer-core/services/track"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	svc   *Service
	clock *bclock.Mock
	db    *gorm.DB
	node  *snowflake.Node
}

func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	db := testutil.NewTestDB(t,
		&identity.User{},
		&genre.Genre{},
		&artist.ArtistProfile{},
		&track.Track{},
		&ChartSubmission{},
		&ChartVote{},
	)

	mock := bclock.NewMock()
	mock.Set(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	cfg := &config.Config{
		Queue: config.DefaultQueueConfig(),
		Chart: config.DefaultChartConfig(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	svc := NewService(Params{DB: db, Node: node, Clock: mock, Config: cfg})
	return &fixture{svc: svc, clock: mock, db: db, node: node}
}

func (f *fixture) seedArtist(t *testing.T, pro bool) *artist.ArtistProfile {
	t.Helper()

	now := f.clock.Now()
	u := identity.User{
		ID:        f.node.Generate().String(),
		Email:     f.node.Generate().String() + "@example.com",
		CreatedAt: now.Add(-72 * time.Hour),
		UpdatedAt: now.Add(-72 * time.Hour),
	}
	require.NoError(t, f.db.Create(&u).Error)

	status := artist.SubscriptionInactive
	if pro {
		status = artist.SubscriptionActive
	}
	p := artist.ArtistProfile{
		ID:                 f.node.Generate().String(),
		CreatedAt:          now,
		UpdatedAt:          now,
		UserID:             u.ID,
		ArtistName:         "Artist " + u.ID,
		SubscriptionStatus: status,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return &p
}

func (f *fixture) seedVoter(t *testing.T, age time.Duration) *identity.User {
	t.Helper()

	created := f.clock.Now().Add(-age)
	u := identity.User{
		ID:        f.node.Generate().String(),
		Email:     f.node.Generate().String() + "@example.com",
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, f.db.Create(&u).Error)
	return &u
}

func (f *fixture) seedTrack(t *testing.T, artistID string) *track.Track {
	t.Helper()

	now := f.clock.Now()
	tr := track.Track{
		ID:               f.node.Generate().String(),
		CreatedAt:        now,
		UpdatedAt:        now,
		ArtistID:         artistID,
		Title:            "Demo",
		Status:           track.StatusCompleted,
		PackageType:      track.PackageBasic,
		ReviewsRequested: 1,
	}
	require.NoError(t, f.db.Create(&tr).Error)
	return &tr
}

func (f *fixture) submit(t *testing.T, a *artist.ArtistProfile) *ChartSubmission {
	t.Helper()

	tr := f.seedTrack(t, a.ID)
	sub, err := f.svc.Submit(context.Background(), SubmitParams{TrackID: tr.ID, ArtistID: a.ID})
	require.NoError(t, err)
	return sub
}

func TestSubmitSlots(t *testing.T) {
	f := newFixture(t)

	free := f.seedArtist(t, false)
	first := f.submit(t, free)

	// a free artist holds one slot; the second submission evicts the first
	second := f.submit(t, free)

	var count int64
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("artist_id = ?", free.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	var gone ChartSubmission
	err := f.db.First(&gone, "id = ?", first.ID).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, f.db.First(&gone, "id = ?", second.ID).Error)

	pro := f.seedArtist(t, true)
	for i := 0; i < 3; i++ {
		f.submit(t, pro)
	}
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("artist_id = ?", pro.ID).Count(&count).Error)
	require.Equal(t, int64(3), count)
}

func TestSubmitEvictsLowestVoted(t *testing.T) {
	f := newFixture(t)

	pro := f.seedArtist(t, true)
	subs := make([]*ChartSubmission, 3)
	for i := range subs {
		subs[i] = f.submit(t, pro)
	}

	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", subs[0].ID).Update("vote_count", 5).Error)
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", subs[1].ID).Update("vote_count", 1).Error)
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", subs[2].ID).Update("vote_count", 3).Error)

	f.submit(t, pro)

	var gone ChartSubmission
	err := f.db.First(&gone, "id = ?", subs[1].ID).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("artist_id = ?", pro.ID).Count(&count).Error)
	require.Equal(t, int64(3), count)
}

func TestSubmitGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.seedArtist(t, true)
	other := f.seedArtist(t, false)
	tr := f.seedTrack(t, owner.ID)

	_, err := f.svc.Submit(ctx, SubmitParams{TrackID: tr.ID, ArtistID: other.ID})
	require.True(t, errutil.IsStatus(err, errutil.StatusForbidden))

	_, err = f.svc.Submit(ctx, SubmitParams{TrackID: tr.ID, ArtistID: owner.ID})
	require.NoError(t, err)

	// same track, same day
	_, err = f.svc.Submit(ctx, SubmitParams{TrackID: tr.ID, ArtistID: owner.ID})
	require.True(t, errutil.IsStatus(err, errutil.StatusConflict))
}

func TestCastVoteGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.seedArtist(t, true)
	sub := f.submit(t, owner)
	voter := f.seedVoter(t, 48*time.Hour)

	// too short a listen fails before anything is looked up
	_, err := f.svc.CastVote(ctx, sub.ID, voter.ID, 10)
	require.True(t, errutil.IsStatus(err, errutil.StatusValidationFailed))

	young := f.seedVoter(t, 10*time.Minute)
	_, err = f.svc.CastVote(ctx, sub.ID, young.ID, 45)
	require.True(t, errutil.IsStatus(err, errutil.StatusForbidden))

	// artists cannot vote for their own submissions
	var ownerUser identity.User
	require.NoError(t, f.db.First(&ownerUser, "id = ?", owner.UserID).Error)
	_, err = f.svc.CastVote(ctx, sub.ID, ownerUser.ID, 45)
	require.True(t, errutil.IsStatus(err, errutil.StatusForbidden))

	vote, err := f.svc.CastVote(ctx, sub.ID, voter.ID, 45)
	require.NoError(t, err)
	require.False(t, vote.CreditGranted)

	var got ChartSubmission
	require.NoError(t, f.db.First(&got, "id = ?", sub.ID).Error)
	require.Equal(t, int64(1), got.VoteCount)

	// one vote per voter per submission
	_, err = f.svc.CastVote(ctx, sub.ID, voter.ID, 45)
	require.True(t, errutil.IsStatus(err, errutil.StatusConflict))

	// the chart day closes at midnight
	f.clock.Add(24 * time.Hour)
	late := f.seedVoter(t, 48*time.Hour)
	_, err = f.svc.CastVote(ctx, sub.ID, late.ID, 45)
	require.True(t, errutil.IsStatus(err, errutil.StatusConflict))
}

func TestCastVoteCreditCap(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Chart.DailyCreditCap = 2
	})
	ctx := context.Background()

	voterArtist := f.seedArtist(t, false)

	owner := f.seedArtist(t, true)
	subs := make([]*ChartSubmission, 3)
	for i := range subs {
		subs[i] = f.submit(t, owner)
	}

	for i, sub := range subs {
		vote, err := f.svc.CastVote(ctx, sub.ID, voterArtist.UserID, 60)
		require.NoError(t, err)
		require.Equal(t, i < 2, vote.CreditGranted)
	}

	var profile artist.ArtistProfile
	require.NoError(t, f.db.First(&profile, "id = ?", voterArtist.ID).Error)
	require.Equal(t, int64(2), profile.ReviewCredits)
	require.Equal(t, int64(2), profile.TotalCreditsEarned)
	require.Equal(t, int64(2), profile.CreditsGrantedToday)

	// the cap resets with the chart day
	f.clock.Add(24 * time.Hour)
	fresh := f.submit(t, owner)
	vote, err := f.svc.CastVote(ctx, fresh.ID, voterArtist.UserID, 60)
	require.NoError(t, err)
	require.True(t, vote.CreditGranted)

	require.NoError(t, f.db.First(&profile, "id = ?", voterArtist.ID).Error)
	require.Equal(t, int64(1), profile.CreditsGrantedToday)
	require.Equal(t, int64(3), profile.ReviewCredits)
}

func TestRetractVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	voterArtist := f.seedArtist(t, false)
	owner := f.seedArtist(t, true)
	sub := f.submit(t, owner)

	vote, err := f.svc.CastVote(ctx, sub.ID, voterArtist.UserID, 60)
	require.NoError(t, err)
	require.True(t, vote.CreditGranted)

	require.NoError(t, f.svc.RetractVote(ctx, sub.ID, voterArtist.UserID))

	var got ChartSubmission
	require.NoError(t, f.db.First(&got, "id = ?", sub.ID).Error)
	require.Zero(t, got.VoteCount)

	// the credit is a one-way grant and still counts against the daily cap
	var profile artist.ArtistProfile
	require.NoError(t, f.db.First(&profile, "id = ?", voterArtist.ID).Error)
	require.Equal(t, int64(1), profile.ReviewCredits)
	require.Equal(t, int64(1), profile.CreditsGrantedToday)

	err = f.svc.RetractVote(ctx, sub.ID, voterArtist.UserID)
	require.True(t, errutil.IsStatus(err, errutil.StatusNotFound))
}

func TestRecordPlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.seedArtist(t, true)
	sub := f.submit(t, owner)

	require.NoError(t, f.svc.RecordPlay(ctx, sub.ID))
	require.NoError(t, f.svc.RecordPlay(ctx, sub.ID))

	var got ChartSubmission
	require.NoError(t, f.db.First(&got, "id = ?", sub.ID).Error)
	require.Equal(t, int64(2), got.PlayCount)

	err := f.svc.RecordPlay(ctx, "missing")
	require.True(t, errutil.IsStatus(err, errutil.StatusNotFound))
}

func TestFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.seedArtist(t, true)
	subs := make([]*ChartSubmission, 3)
	for i := range subs {
		subs[i] = f.submit(t, owner)
	}

	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", subs[0].ID).Update("vote_count", 2).Error)
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", subs[1].ID).Update("vote_count", 9).Error)
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", subs[2].ID).Update("vote_count", 4).Error)

	chartDay := f.clock.Now()
	f.clock.Add(13 * time.Hour)

	total, err := f.svc.Finalize(ctx, chartDay)
	require.NoError(t, err)
	require.Equal(t, 3, total)

	var winner ChartSubmission
	require.NoError(t, f.db.First(&winner, "id = ?", subs[1].ID).Error)
	require.NotNil(t, winner.Rank)
	require.Equal(t, 1, *winner.Rank)
	require.True(t, winner.IsFeatured)
	require.NotNil(t, winner.FinalizedAt)

	var runnerUp ChartSubmission
	require.NoError(t, f.db.First(&runnerUp, "id = ?", subs[2].ID).Error)
	require.Equal(t, 2, *runnerUp.Rank)
	require.False(t, runnerUp.IsFeatured)

	// re-running lands on the same result
	total, err = f.svc.Finalize(ctx, chartDay)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.NoError(t, f.db.First(&winner, "id = ?", subs[1].ID).Error)
	require.Equal(t, 1, *winner.Rank)

	ranked, err := f.svc.Daily(ctx, chartDay)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	require.Equal(t, subs[1].ID, ranked[0].ID)

	featured, err := f.svc.FeaturedWinner(ctx, f.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, featured)
	require.Equal(t, subs[1].ID, featured.ID)
}

func TestWeekly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.seedArtist(t, true)

	first := f.submit(t, owner)
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", first.ID).
		Updates(map[string]any{"vote_count": 3, "play_count": 10}).Error)

	f.clock.Add(24 * time.Hour)

	// same track resubmitted the next day accumulates in the weekly window
	resub, err := f.svc.Submit(ctx, SubmitParams{TrackID: first.TrackID, ArtistID: owner.ID})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", resub.ID).
		Updates(map[string]any{"vote_count": 2, "play_count": 5}).Error)

	other := f.submit(t, owner)
	require.NoError(t, f.db.Model(&ChartSubmission{}).Where("id = ?", other.ID).
		Update("vote_count", 4).Error)

	entries, err := f.svc.Weekly(ctx, f.clock.Now())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, first.TrackID, entries[0].TrackID)
	require.Equal(t, int64(5), entries[0].VoteCount)
	require.Equal(t, int64(15), entries[0].PlayCount)
	require.Equal(t, other.TrackID, entries[1].TrackID)
}
