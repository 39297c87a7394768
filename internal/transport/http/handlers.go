package http

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
)

type handlers struct {
	Services
}

// auth

func (h *handlers) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.Auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return created(c, "registered", res)
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, "logged in", res)
}

func (h *handlers) loginGoogle(c *fiber.Ctx) error {
	var req googleLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.Auth.LoginGoogle(c.UserContext(), req.IDToken)
	if err != nil {
		return err
	}
	return ok(c, "logged in", res)
}

func (h *handlers) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.Auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return ok(c, "token refreshed", res)
}

// Tokens are stateless; the client drops them.
func (h *handlers) logout(c *fiber.Ctx) error {
	return ok(c, "logged out", nil)
}

// quiz

func (h *handlers) categories(c *fiber.Ctx) error {
	difficulty, err := domain.ParseDifficulty(c.Query("difficulty"))
	if err != nil {
		return err
	}
	filter := domain.CategoryFilter{Search: c.Query("search"), Difficulty: difficulty}
	page, err := h.Quiz.Categories(c.UserContext(), filter, pageRequest(c))
	if err != nil {
		return err
	}
	return ok(c, "categories", page)
}

func (h *handlers) startAttempt(c *fiber.Ctx) error {
	categoryID, err := pathID(c, "categoryId")
	if err != nil {
		return err
	}
	start, err := h.Quiz.StartAttempt(c.UserContext(), currentUser(c), categoryID)
	if err != nil {
		return err
	}
	return ok(c, "quiz started", start)
}

func (h *handlers) attemptState(c *fiber.Ctx) error {
	categoryID, err := pathID(c, "categoryId")
	if err != nil {
		return err
	}
	state, err := h.Quiz.AttemptState(c.UserContext(), currentUser(c), categoryID)
	if err != nil {
		return err
	}
	return ok(c, "attempt state", fiber.Map{"categoryId": categoryID, "state": state})
}

func (h *handlers) submitAttempt(c *fiber.Ctx) error {
	categoryID, err := pathID(c, "categoryId")
	if err != nil {
		return err
	}
	var sub domain.Submission
	if err := bind(c, &sub); err != nil {
		return err
	}
	res, err := h.Quiz.SubmitAttempt(c.UserContext(), currentUser(c), categoryID, sub)
	if err != nil {
		return err
	}
	return ok(c, "quiz submitted", res)
}

func (h *handlers) quizHistory(c *fiber.Ctx) error {
	var categoryID *int64
	if raw := c.Query("categoryId"); raw != "" {
		id := int64(c.QueryInt("categoryId", 0))
		if id <= 0 {
			return fmt.Errorf("invalid categoryId: %w", domain.ErrInvalidArgument)
		}
		categoryID = &id
	}
	page, err := h.Quiz.History(c.UserContext(), currentUser(c), categoryID, pageRequest(c))
	if err != nil {
		return err
	}
	return ok(c, "quiz history", page)
}

// points

func (h *handlers) pointsSummary(c *fiber.Ctx) error {
	summary, err := h.Points.Summary(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return ok(c, "points summary", summary)
}

func (h *handlers) pointsHistory(c *fiber.Ctx) error {
	typ, err := domain.ParseTransactionType(c.Query("type"))
	if err != nil {
		return err
	}
	page, err := h.Points.History(c.UserContext(), currentUser(c), typ, pageRequest(c))
	if err != nil {
		return err
	}
	return ok(c, "points history", page)
}

// rewards

func (h *handlers) availableRewards(c *fiber.Ctx) error {
	offers, err := h.Rewards.Available(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return ok(c, "available rewards", offers)
}

func (h *handlers) redeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	redemption, err := h.Rewards.Redeem(c.UserContext(), currentUser(c), req.RewardID, req.WalletAddress)
	if err != nil {
		return err
	}
	return created(c, "reward redeemed", redemption)
}

func (h *handlers) redemptionHistory(c *fiber.Ctx) error {
	page, err := h.Rewards.History(c.UserContext(), currentUser(c), pageRequest(c))
	if err != nil {
		return err
	}
	return ok(c, "redemption history", page)
}

// admin

func (h *handlers) adminAward(c *fiber.Ctx) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	var req awardRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.Points.Award(c.UserContext(), userID, req.Amount, app.SourceAdminAward, req.Description)
	if err != nil {
		return err
	}
	return ok(c, "points awarded", toPublicUser(user))
}

func (h *handlers) adminRefreshPool(c *fiber.Ctx) error {
	categoryID, err := pathID(c, "categoryId")
	if err != nil {
		return err
	}
	if err := h.Quiz.RefreshPool(c.UserContext(), categoryID); err != nil {
		return err
	}
	return ok(c, "question pool refreshed", nil)
}

// community

func (h *handlers) communityStats(c *fiber.Ctx) error {
	stats, err := h.Community.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, "community stats", stats)
}

func (h *handlers) communityCategories(c *fiber.Ctx) error {
	cats, err := h.Community.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, "community categories", cats)
}

func (h *handlers) experts(c *fiber.Ctx) error {
	users, err := h.Community.Experts(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]publicUser, 0, len(users))
	for _, u := range users {
		out = append(out, toPublicUser(u))
	}
	return ok(c, "experts", out)
}

func (h *handlers) posts(c *fiber.Ctx) error {
	categoryID, err := pathID(c, "categoryId")
	if err != nil {
		return err
	}
	order := domain.ParsePostSort(c.Query("sort"))
	page, err := h.Community.Posts(c.UserContext(), categoryID, order, pageRequest(c))
	if err != nil {
		return err
	}
	return ok(c, "posts", page)
}

func (h *handlers) createPost(c *fiber.Ctx) error {
	categoryID, err := pathID(c, "categoryId")
	if err != nil {
		return err
	}
	var req createPostRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	post, err := h.Community.CreatePost(c.UserContext(), currentUser(c), categoryID, app.NewPost{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		return err
	}
	return created(c, "post created", post)
}

func (h *handlers) post(c *fiber.Ctx) error {
	postID, err := pathID(c, "postId")
	if err != nil {
		return err
	}
	post, err := h.Community.Post(c.UserContext(), postID)
	if err != nil {
		return err
	}
	return ok(c, "post", post)
}

// user

func (h *handlers) profile(c *fiber.Ctx) error {
	profile, err := h.Users.Profile(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return ok(c, "profile", profile)
}

func (h *handlers) updateProfile(c *fiber.Ctx) error {
	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.Users.UpdateProfile(c.UserContext(), currentUser(c), domain.ProfileUpdate{
		Name:     req.Name,
		Bio:      req.Bio,
		Location: req.Location,
		Website:  req.Website,
	})
	if err != nil {
		return err
	}
	return ok(c, "profile updated", user)
}

func (h *handlers) uploadAvatar(c *fiber.Ctx) error {
	header, err := c.FormFile("avatar")
	if err != nil {
		return fmt.Errorf("avatar file is required: %w", domain.ErrInvalidArgument)
	}
	f, err := header.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	user, err := h.Users.UploadAvatar(c.UserContext(), currentUser(c), header.Filename, data)
	if err != nil {
		return err
	}
	return ok(c, "avatar uploaded", user)
}

// leaderboard

func (h *handlers) leaderboard(c *fiber.Ctx) error {
	lb, err := h.Leaderboard.Top(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return ok(c, "leaderboard", lb)
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.SendString("ok")
}
