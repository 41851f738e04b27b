package track

import (
	"context"
	"testing"
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trackpeer-core/pkg/errutil"
	"trackpeer-core/services/genre"
	"trackpeer-core/services/notify"
	"trackpeer-core/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewTestDB(t, &genre.Genre{}, &Track{})

	mock := bclock.NewMock()
	mock.Set(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	svc := NewService(Params{DB: db, Node: node, Clock: mock, Notifier: notify.Nop{}})
	return svc, db
}

func TestCreate(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	g := genre.Genre{ID: "g1", Name: "House", Slug: "house"}
	require.NoError(t, db.Create(&g).Error)

	created, err := svc.Create(ctx, CreateParams{
		ArtistID:         "artist-1",
		Title:            "Night Drive",
		PackageType:      PackageStandard,
		ReviewsRequested: 5,
		GenreIDs:         []string{"g1", "missing"},
	})
	require.NoError(t, err)
	require.Equal(t, StatusQueued, created.Status)
	require.Zero(t, created.ReviewsCompleted)
	require.Len(t, created.Genres, 1)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Night Drive", got.Title)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{Title: "x", ReviewsRequested: 1})
	require.True(t, errutil.IsStatus(err, errutil.StatusValidationFailed))

	_, err = svc.Create(ctx, CreateParams{ArtistID: "a", ReviewsRequested: 1})
	require.True(t, errutil.IsStatus(err, errutil.StatusValidationFailed))

	_, err = svc.Create(ctx, CreateParams{ArtistID: "a", Title: "x", ReviewsRequested: 0})
	require.True(t, errutil.IsStatus(err, errutil.StatusValidationFailed))

	// unknown package types fall back to the basic tier
	created, err := svc.Create(ctx, CreateParams{ArtistID: "a", Title: "x", PackageType: "DELUXE", ReviewsRequested: 1})
	require.NoError(t, err)
	require.Equal(t, PackageBasic, created.PackageType)
}

func TestCancel(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{ArtistID: "a", Title: "x", ReviewsRequested: 3})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, created.ID))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)

	// terminal tracks cannot be cancelled again
	err = svc.Cancel(ctx, created.ID)
	require.True(t, errutil.IsStatus(err, errutil.StatusConflict))

	require.NoError(t, db.Model(&Track{}).Where("id = ?", created.ID).
		Update("status", StatusCompleted).Error)
	err = svc.Cancel(ctx, created.ID)
	require.True(t, errutil.IsStatus(err, errutil.StatusConflict))

	err = svc.Cancel(ctx, "missing")
	require.True(t, errutil.IsStatus(err, errutil.StatusNotFound))
}
