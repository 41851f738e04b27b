package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"trackpeer-core/pkg/errutil"
	"trackpeer-core/pkg/health"
	"trackpeer-core/pkg/middleware"
	"trackpeer-core/services/chart"
	"trackpeer-core/services/queue"
	"trackpeer-core/services/reviewer"
	"trackpeer-core/services/track"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler),
)

type Params struct {
	fx.In
	Health    health.HealthService
	Tracks    *track.Service
	Queue     *queue.Service
	Charts    *chart.Service
	Reviewers *reviewer.Service
}

// NewHandler builds the REST surface. Handlers stay thin: bind, call the
// service, attach errors for the error middleware to translate.
func NewHandler(p Params) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)

	v1 := r.Group("/v1")

	tracks := v1.Group("/tracks")
	tracks.POST("", createTrack(p.Tracks))
	tracks.GET("/:id", getTrack(p.Tracks))
	tracks.POST("/:id/cancel", cancelTrack(p.Tracks))
	tracks.POST("/:id/assignments", assignTrack(p.Queue))

	reviewers := v1.Group("/reviewers")
	reviewers.GET("/:id", getReviewer(p.Reviewers))
	reviewers.GET("/:id/queue", reviewerQueue(p.Queue))

	reviews := v1.Group("/reviews")
	reviews.POST("/:id/heartbeat", heartbeat(p.Queue))
	reviews.POST("/:id/complete", completeReview(p.Queue))
	reviews.POST("/:id/rating", rateReview(p.Queue))

	charts := v1.Group("/charts")
	charts.POST("/submissions", submitToChart(p.Charts))
	charts.GET("/daily", dailyChart(p.Charts))
	charts.GET("/weekly", weeklyChart(p.Charts))
	charts.POST("/submissions/:id/votes", castVote(p.Charts))
	charts.DELETE("/submissions/:id/votes", retractVote(p.Charts))
	charts.POST("/submissions/:id/plays", recordPlay(p.Charts))

	return r
}

type createTrackRequest struct {
	ArtistID         string   `json:"artist_id"`
	Title            string   `json:"title"`
	PackageType      string   `json:"package_type"`
	ReviewsRequested int      `json:"reviews_requested"`
	GenreIDs         []string `json:"genre_ids"`
}

func createTrack(svc *track.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTrackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}

		t, err := svc.Create(c.Request.Context(), track.CreateParams{
			ArtistID:         req.ArtistID,
			Title:            req.Title,
			PackageType:      track.PackageType(req.PackageType),
			ReviewsRequested: req.ReviewsRequested,
			GenreIDs:         req.GenreIDs,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func getTrack(svc *track.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func cancelTrack(svc *track.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func assignTrack(svc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		assigned, err := svc.AssignReviewersToTrack(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"assigned": assigned})
	}
}

func getReviewer(svc *reviewer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

func reviewerQueue(svc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svc.ReviewerQueue(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reviews": entries})
	}
}

func heartbeat(svc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := svc.Heartbeat(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":          entry.Status,
			"listen_duration": entry.ListenDuration,
			"expires_at":      entry.ExpiresAt,
		})
	}
}

type completeReviewRequest struct {
	FirstImpression  string `json:"first_impression"`
	ProductionScore  int    `json:"production_score"`
	VocalScore       *int   `json:"vocal_score"`
	OriginalityScore int    `json:"originality_score"`
	WouldListenAgain bool   `json:"would_listen_again"`
	BestPart         string `json:"best_part"`
	WeakestPart      string `json:"weakest_part"`
	AdditionalNotes  string `json:"additional_notes"`
}

func completeReview(svc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completeReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}

		result, err := svc.CompleteReview(c.Request.Context(), c.Param("id"), queue.CompleteParams{
			FirstImpression:  req.FirstImpression,
			ProductionScore:  req.ProductionScore,
			VocalScore:       req.VocalScore,
			OriginalityScore: req.OriginalityScore,
			WouldListenAgain: req.WouldListenAgain,
			BestPart:         req.BestPart,
			WeakestPart:      req.WeakestPart,
			AdditionalNotes:  req.AdditionalNotes,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"earnings":          result.Earnings,
			"track_completed":   result.TrackCompleted,
			"reviews_completed": result.ReviewsCompleted,
			"reviews_requested": result.ReviewsRequested,
		})
	}
}

type rateReviewRequest struct {
	Rating int `json:"rating"`
}

func rateReview(svc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rateReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}

		if err := svc.RateReview(c.Request.Context(), c.Param("id"), req.Rating); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type submitToChartRequest struct {
	TrackID  string `json:"track_id"`
	ArtistID string `json:"artist_id"`
}

func submitToChart(svc *chart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitToChartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}

		sub, err := svc.Submit(c.Request.Context(), chart.SubmitParams{
			TrackID:  req.TrackID,
			ArtistID: req.ArtistID,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, sub)
	}
}

// chartDay parses an optional ?date=YYYY-MM-DD query, defaulting to today.
func chartDay(c *gin.Context) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errutil.BadRequest("date must be formatted YYYY-MM-DD", err)
	}
	return day, nil
}

func dailyChart(svc *chart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, err := chartDay(c)
		if err != nil {
			c.Error(err)
			return
		}

		subs, err := svc.Daily(c.Request.Context(), day)
		if err != nil {
			c.Error(err)
			return
		}

		featured, err := svc.FeaturedWinner(c.Request.Context(), day)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"submissions": subs, "featured": featured})
	}
}

func weeklyChart(svc *chart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		day, err := chartDay(c)
		if err != nil {
			c.Error(err)
			return
		}

		entries, err := svc.Weekly(c.Request.Context(), day)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

type castVoteRequest struct {
	VoterID        string `json:"voter_id"`
	ListenDuration int    `json:"listen_duration"`
}

func castVote(svc *chart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req castVoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", err))
			return
		}

		vote, err := svc.CastVote(c.Request.Context(), c.Param("id"), req.VoterID, req.ListenDuration)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"vote_id":        vote.ID,
			"credit_granted": vote.CreditGranted,
		})
	}
}

func retractVote(svc *chart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		voterID := c.Query("voter_id")
		if voterID == "" {
			c.Error(errutil.BadRequest("voter_id is required", nil))
			return
		}

		if err := svc.RetractVote(c.Request.Context(), c.Param("id"), voterID); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func recordPlay(svc *chart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RecordPlay(c.Request.Context(), c.Param("id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
