package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mindquest-service/internal/domain"
)

var avatarExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// UserService manages profiles.
type UserService struct {
	store Store
	files FileStorage
}

func NewUserService(store Store, files FileStorage) *UserService {
	return &UserService{store: store, files: files}
}

// Authorize fails with domain.ErrForbidden unless the user holds p.
func (s *UserService) Authorize(ctx context.Context, userID int64, p domain.Permission) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status != domain.UserActive || !user.HasPermission(p) {
		return fmt.Errorf("%s required: %w", p, domain.ErrForbidden)
	}
	return nil
}

// ProfileStats summarises a user's quiz activity.
type ProfileStats struct {
	TotalQuizzes int64   `json:"totalQuizzes"`
	AverageScore float64 `json:"averageScore"`
	TimeSpent    string  `json:"timeSpent"`
}

// Profile is a user together with activity stats.
type Profile struct {
	domain.User
	NextLevelPoints int64        `json:"nextLevelPoints"`
	Stats           ProfileStats `json:"stats"`
}

func (s *UserService) Profile(ctx context.Context, userID int64) (Profile, error) {
	var (
		user  domain.User
		stats domain.AttemptStats
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.store.GetUser(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.store.AttemptStats(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}
	return Profile{
		User:            user,
		NextLevelPoints: domain.NextLevelPoints(user.Level),
		Stats: ProfileStats{
			TotalQuizzes: stats.TotalQuizzes,
			AverageScore: stats.AverageScore,
			TimeSpent:    FormatTimeSpent(stats.TotalTimeSpent),
		},
	}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) (domain.User, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return domain.User{}, fmt.Errorf("name must not be blank: %w", domain.ErrInvalidArgument)
	}
	return s.store.UpdateProfile(ctx, userID, update)
}

// UploadAvatar stores the image under a fresh name and points the user at it.
func (s *UserService) UploadAvatar(ctx context.Context, userID int64, filename string, data []byte) (domain.User, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !avatarExtensions[ext] {
		return domain.User{}, fmt.Errorf("unsupported avatar type %q: %w", ext, domain.ErrInvalidArgument)
	}
	if len(data) == 0 {
		return domain.User{}, fmt.Errorf("empty avatar: %w", domain.ErrInvalidArgument)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.User{}, err
	}

	name := fmt.Sprintf("avatar_%d_%s%s", userID, uuid.NewString(), ext)
	path, err := s.files.Save(ctx, name, data)
	if err != nil {
		return domain.User{}, fmt.Errorf("save avatar: %w", err)
	}
	return s.store.SetAvatar(ctx, userID, path)
}

// FormatTimeSpent renders seconds as "Xh Ym", or "Ym" below an hour.
func FormatTimeSpent(seconds int64) string {
	if seconds <= 0 {
		return "0m"
	}
	hours := seconds / 3600
	minutes := seconds % 3600 / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
