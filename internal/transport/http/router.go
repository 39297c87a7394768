package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Auth        *app.AuthService
	Quiz        *app.QuizService
	Points      *app.PointsService
	Rewards     *app.RewardService
	Community   *app.CommunityService
	Users       *app.UserService
	Leaderboard *app.LeaderboardFeed
}

type Options struct {
	UploadsDir    string
	UploadsPrefix string
	// WriteLimit caps quiz submissions and redemptions per user per LimitWindow.
	WriteLimit  int
	LimitWindow time.Duration
	BodyLimit   int
}

func (o Options) withDefaults() Options {
	if o.WriteLimit <= 0 {
		o.WriteLimit = 10
	}
	if o.LimitWindow <= 0 {
		o.LimitWindow = time.Minute
	}
	if o.BodyLimit <= 0 {
		o.BodyLimit = 5 * 1024 * 1024
	}
	if o.UploadsPrefix == "" {
		o.UploadsPrefix = "/uploads"
	}
	return o
}

// NewApp builds the REST API.
func NewApp(svc Services, tokens AccessParser, log *slog.Logger, opts Options) *fiber.App {
	opts = opts.withDefaults()
	h := &handlers{Services: svc}

	f := fiber.New(fiber.Config{
		AppName:               "mindquest-service",
		ErrorHandler:          errorHandler(log),
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
	})
	f.Use(recover.New())
	f.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	f.Use(requestLogger(log))
	f.Use(cors.New())

	if opts.UploadsDir != "" {
		f.Static(opts.UploadsPrefix, opts.UploadsDir)
	}
	f.Get("/healthz", h.health)

	authed := requireAuth(tokens)
	limited := perUserLimiter(opts.WriteLimit, opts.LimitWindow)

	a := f.Group("/auth")
	a.Post("/register", h.register)
	a.Post("/login", h.login)
	a.Post("/google", h.loginGoogle)
	a.Post("/refresh", h.refresh)
	a.Post("/logout", authed, h.logout)

	q := f.Group("/quiz")
	q.Get("/categories", h.categories)
	q.Get("/history", authed, h.quizHistory)
	q.Get("/:categoryId/questions", authed, h.startAttempt)
	q.Get("/:categoryId/state", authed, h.attemptState)
	q.Post("/:categoryId/submit", authed, limited, h.submitAttempt)

	p := f.Group("/points", authed)
	p.Get("/summary", h.pointsSummary)
	p.Get("/history", h.pointsHistory)

	r := f.Group("/rewards", authed)
	r.Get("/available", h.availableRewards)
	r.Post("/redeem", limited, h.redeem)
	r.Get("/history", h.redemptionHistory)

	c := f.Group("/community")
	c.Get("/stats", h.communityStats)
	c.Get("/categories", h.communityCategories)
	c.Get("/experts", h.experts)
	c.Get("/categories/:categoryId/posts", h.posts)
	c.Post("/categories/:categoryId/posts", authed, h.createPost)
	c.Get("/posts/:postId", h.post)

	u := f.Group("/user", authed)
	u.Get("/profile", h.profile)
	u.Put("/profile", h.updateProfile)
	u.Post("/avatar", h.uploadAvatar)

	f.Get("/leaderboard", h.leaderboard)

	adm := f.Group("/admin", authed)
	adm.Post("/users/:userId/points", requirePermission(svc.Users, domain.PermissionManageUsers), h.adminAward)
	adm.Post("/quiz/:categoryId/refresh", requirePermission(svc.Users, domain.PermissionCreateQuiz), h.adminRefreshPool)
	return f
}

// NewHandler serves the WebSocket leaderboard next to the REST API.
func NewHandler(api *fiber.App, ws *LeaderboardWS) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/leaderboard", ws.ServeWS)
	mux.Handle("/", adaptor.FiberApp(api))
	return mux
}
