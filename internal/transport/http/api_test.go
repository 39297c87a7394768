package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"mindquest-service/internal/app"
	"mindquest-service/internal/auth"
	"mindquest-service/internal/domain"
	"mindquest-service/internal/infra/memory"
)

type testEnv struct {
	store  *memory.Store
	feed   *app.LeaderboardFeed
	points *app.PointsService
	api    *fiber.App
	ws     *LeaderboardWS
}

type fakeFiles struct{}

func (fakeFiles) Save(_ context.Context, name string, _ []byte) (string, error) {
	return "/uploads/" + name, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	tokens, err := auth.NewTokens("test-secret", "", time.Hour, 2*time.Hour)
	require.NoError(t, err)

	feed := app.NewLeaderboardFeed(memory.NewLeaderboard(), store, 10, log)
	ledger := app.NewLedger()
	pools := memory.NewPoolCache(app.NewStorePoolLoader(store), time.Minute)
	sessions := memory.NewSessionStore(time.Hour)
	points := app.NewPointsService(store, ledger, feed, log)

	svc := Services{
		Auth:        app.NewAuthService(store, tokens, auth.NewHasher(4), auth.NewGoogleVerifier(""), []string{"admin@mindquest.dev"}, log),
		Quiz:        app.NewQuizService(store, pools, sessions, ledger, feed, log, app.WithQuestionsPerAttempt(3), app.WithRandSource(rand.NewSource(1))),
		Points:      points,
		Rewards:     app.NewRewardService(store, ledger, feed, log),
		Community:   app.NewCommunityService(store),
		Users:       app.NewUserService(store, fakeFiles{}),
		Leaderboard: feed,
	}
	return &testEnv{
		store:  store,
		feed:   feed,
		points: points,
		api:    NewApp(svc, tokens, log, Options{WriteLimit: 100}),
		ws:     NewLeaderboardWS(feed, log),
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, apiResponse) {
	t.Helper()
	resp, err := e.api.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) register(t *testing.T, name string) (int64, string) {
	t.Helper()
	status, resp := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     name,
		"email":    name + "@mindquest.dev",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var res app.AuthResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	require.NotEmpty(t, res.Tokens.AccessToken)
	return res.User.ID, res.Tokens.AccessToken
}

func (e *testEnv) category(t *testing.T, n int) (domain.QuizCategory, []domain.Question) {
	t.Helper()
	ctx := context.Background()
	c := domain.QuizCategory{Title: "Science", Difficulty: domain.DifficultyEasy, Active: true}
	require.NoError(t, e.store.CreateCategory(ctx, &c))
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			CategoryID:    c.ID,
			Prompt:        fmt.Sprintf("Q%d", i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Points:        10,
			TimeLimit:     30,
			Active:        true,
		}
		require.NoError(t, e.store.CreateQuestion(ctx, &qs[i]))
	}
	return c, qs
}

func TestQuizFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice")
	cat, qs := env.category(t, 3)
	base := fmt.Sprintf("/quiz/%d", cat.ID)

	status, resp := env.do(t, http.MethodGet, base+"/state", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(resp.Data), string(domain.AttemptNotStarted))

	status, resp = env.do(t, http.MethodGet, base+"/questions", token, nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	var start app.AttemptStart
	require.NoError(t, json.Unmarshal(resp.Data, &start))
	require.Len(t, start.Questions, 3)
	require.NotContains(t, string(resp.Data), "correctAnswer")

	answers := make([]map[string]any, len(qs))
	for i, q := range qs {
		answers[i] = map[string]any{"questionId": q.ID, "selectedAnswer": q.CorrectAnswer, "timeSpent": 10}
	}
	submission := map[string]any{"answers": answers, "totalTimeSpent": 30}

	status, resp = env.do(t, http.MethodPost, base+"/submit", token, submission)
	require.Equal(t, http.StatusOK, status, resp.Message)
	require.True(t, resp.Success)
	var result app.QuizResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	// 30 base + 6 time bonus + 50 perfect bonus
	require.EqualValues(t, 86, result.Attempt.TotalPoints)
	require.EqualValues(t, 86, result.Balance)
	require.False(t, result.LevelUp)

	status, resp = env.do(t, http.MethodPost, base+"/submit", token, submission)
	require.Equal(t, http.StatusConflict, status)
	require.False(t, resp.Success)

	status, resp = env.do(t, http.MethodGet, base+"/state", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(resp.Data), string(domain.AttemptSubmitted))

	status, resp = env.do(t, http.MethodGet, "/points/summary", token, nil)
	require.Equal(t, http.StatusOK, status)
	var summary domain.PointsSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	require.EqualValues(t, 86, summary.Balance)
	require.EqualValues(t, 86, summary.TotalEarned)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "bob")
	reward := domain.CryptoReward{Name: "BTC", MinPoints: 500, Available: true}
	require.NoError(t, env.store.CreateReward(context.Background(), &reward))

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"missing token", http.MethodGet, "/points/summary", "", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/points/summary", "nope", nil, http.StatusUnauthorized},
		{"unknown category", http.MethodGet, "/quiz/999/questions", token, nil, http.StatusNotFound},
		{"bad category id", http.MethodGet, "/quiz/abc/state", token, nil, http.StatusBadRequest},
		{"empty submission", http.MethodPost, "/quiz/1/submit", token, map[string]any{"answers": []any{}}, http.StatusBadRequest},
		{"insufficient balance", http.MethodPost, "/rewards/redeem", token, map[string]any{"rewardId": reward.ID, "walletAddress": "bc1qxyz"}, http.StatusUnprocessableEntity},
		{"missing wallet", http.MethodPost, "/rewards/redeem", token, map[string]any{"rewardId": reward.ID}, http.StatusBadRequest},
		{"bad difficulty", http.MethodGet, "/quiz/categories?difficulty=extreme", "", nil, http.StatusBadRequest},
		{"duplicate email", http.MethodPost, "/auth/register", "", map[string]string{"name": "bob", "email": "bob@mindquest.dev", "password": "secret1"}, http.StatusConflict},
		{"wrong password", http.MethodPost, "/auth/login", "", map[string]string{"email": "bob@mindquest.dev", "password": "nope"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := env.do(t, tc.method, tc.path, tc.token, tc.body)
			require.Equal(t, tc.want, status, resp.Message)
			require.False(t, resp.Success)
			require.NotEmpty(t, resp.Message)
		})
	}
}

func TestRedeemAndHistory(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.register(t, "carol")
	_, err := env.points.Award(context.Background(), userID, 600, "seed", "starting balance")
	require.NoError(t, err)
	reward := domain.CryptoReward{Name: "ETH", MinPoints: 500, Available: true}
	require.NoError(t, env.store.CreateReward(context.Background(), &reward))

	status, resp := env.do(t, http.MethodPost, "/rewards/redeem", token, map[string]any{"rewardId": reward.ID, "walletAddress": "0xabc"})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var redemption domain.RewardRedemption
	require.NoError(t, json.Unmarshal(resp.Data, &redemption))
	require.Equal(t, domain.RedemptionPending, redemption.Status)
	require.EqualValues(t, 500, redemption.PointsUsed)

	status, resp = env.do(t, http.MethodGet, "/rewards/history", token, nil)
	require.Equal(t, http.StatusOK, status)
	var page domain.Page[domain.RewardRedemption]
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Equal(t, 1, page.Total)

	status, resp = env.do(t, http.MethodGet, "/points/history?type=redeemed", token, nil)
	require.Equal(t, http.StatusOK, status)
	var txs domain.Page[domain.PointsTransaction]
	require.NoError(t, json.Unmarshal(resp.Data, &txs))
	require.Len(t, txs.Items, 1)
	require.EqualValues(t, 500, txs.Items[0].Points)
}

func TestCommunityAndProfile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "dave")
	cat, _ := env.category(t, 1)
	postsPath := fmt.Sprintf("/community/categories/%d/posts", cat.ID)

	status, resp := env.do(t, http.MethodPost, postsPath, token, map[string]any{"title": "Tips", "content": "Read the question twice.", "tags": []string{"tips"}})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var post domain.CommunityPost
	require.NoError(t, json.Unmarshal(resp.Data, &post))
	require.Equal(t, "dave", post.AuthorName)

	status, resp = env.do(t, http.MethodGet, postsPath, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(resp.Data), "Tips")

	status, _ = env.do(t, http.MethodGet, fmt.Sprintf("/community/posts/%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, status)

	status, resp = env.do(t, http.MethodGet, "/community/experts", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotContains(t, string(resp.Data), "email")

	bio := "quiz fan"
	status, resp = env.do(t, http.MethodPut, "/user/profile", token, map[string]any{"bio": bio})
	require.Equal(t, http.StatusOK, status, resp.Message)
	require.Contains(t, string(resp.Data), bio)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/user/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	status, resp = env.send(t, req)
	require.Equal(t, http.StatusOK, status, resp.Message)
	require.Contains(t, string(resp.Data), "/uploads/avatar_")
}

func TestSubmitIsRateLimitedPerUser(t *testing.T) {
	env := newTestEnv(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, _ := auth.NewTokens("test-secret", "", time.Hour, time.Hour)
	api := NewApp(Services{Quiz: app.NewQuizService(env.store, nil, nil, nil, nil, log)}, tokens, log, Options{WriteLimit: 1, LimitWindow: time.Minute})
	pair, err := tokens.Issue(1)
	require.NoError(t, err)

	statuses := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/quiz/1/submit", bytes.NewReader([]byte(`{"answers":[]}`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		resp, err := api.Test(req, -1)
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	require.Equal(t, []int{http.StatusBadRequest, http.StatusTooManyRequests}, statuses)
}

func TestAdminRoutesRequirePermission(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.register(t, "erin")
	_, adminToken := env.register(t, "admin")
	cat, _ := env.category(t, 2)
	award := map[string]any{"amount": 250, "description": "tournament prize"}
	awardPath := fmt.Sprintf("/admin/users/%d/points", userID)

	status, resp := env.do(t, http.MethodPost, awardPath, token, award)
	require.Equal(t, http.StatusForbidden, status, resp.Message)

	status, resp = env.do(t, http.MethodPost, awardPath, "", award)
	require.Equal(t, http.StatusUnauthorized, status, resp.Message)

	status, resp = env.do(t, http.MethodPost, awardPath, adminToken, award)
	require.Equal(t, http.StatusOK, status, resp.Message)
	user, err := env.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.EqualValues(t, 250, user.Points)

	txs, err := env.store.ListTransactions(context.Background(), userID, domain.TransactionEarned, domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, txs.Items, 1)
	require.Equal(t, app.SourceAdminAward, txs.Items[0].Source)

	status, resp = env.do(t, http.MethodPost, awardPath, adminToken, map[string]any{"amount": 0, "description": "x"})
	require.Equal(t, http.StatusBadRequest, status, resp.Message)

	status, resp = env.do(t, http.MethodPost, fmt.Sprintf("/admin/quiz/%d/refresh", cat.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = env.do(t, http.MethodPost, "/admin/quiz/999/refresh", adminToken, nil)
	require.Equal(t, http.StatusNotFound, status, resp.Message)

	status, resp = env.do(t, http.MethodPost, fmt.Sprintf("/admin/quiz/%d/refresh", cat.ID), token, nil)
	require.Equal(t, http.StatusForbidden, status, resp.Message)
}
