package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"mindquest-service/internal/domain"
)

const (
	statsTopCategories = 5
	expertsLimit       = 10
	maxPostTitle       = 200
	maxPostContent     = 5000
)

// CommunityService serves the category forums.
type CommunityService struct {
	store Store
	now   func() time.Time
}

func NewCommunityService(store Store) *CommunityService {
	return NewCommunityServiceWithClock(store, time.Now)
}

// NewCommunityServiceWithClock allows deterministic timestamps in tests.
func NewCommunityServiceWithClock(store Store, now func() time.Time) *CommunityService {
	return &CommunityService{store: store, now: now}
}

// NewPost is the input of CreatePost.
type NewPost struct {
	Title   string
	Content string
	Tags    []string
}

// Stats aggregates post and user counts; the three reads run concurrently.
func (s *CommunityService) Stats(ctx context.Context) (domain.CommunityStats, error) {
	var (
		stats domain.CommunityStats
		top   []domain.CategoryPostCount
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountPosts(ctx, 0)
		stats.TotalPosts = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountActiveUsers(ctx)
		stats.ActiveUsers = n
		return err
	})
	g.Go(func() error {
		counts, err := s.Categories(ctx)
		if len(counts) > statsTopCategories {
			counts = counts[:statsTopCategories]
		}
		top = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.CommunityStats{}, err
	}
	stats.TopCategories = top
	return stats, nil
}

// Categories lists every category with its post count.
func (s *CommunityService) Categories(ctx context.Context) ([]domain.CategoryPostCount, error) {
	cats, err := s.store.AllCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CategoryPostCount, 0, len(cats))
	for _, c := range cats {
		n, err := s.store.CountPosts(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("count posts of category %d: %w", c.ID, err)
		}
		out = append(out, domain.CategoryPostCount{CategoryID: c.ID, Title: c.Title, PostCount: n})
	}
	return out, nil
}

func (s *CommunityService) Posts(ctx context.Context, categoryID int64, order domain.PostSort, page domain.PageRequest) (domain.Page[domain.CommunityPost], error) {
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return domain.Page[domain.CommunityPost]{}, err
	}
	return s.store.ListPosts(ctx, categoryID, order, page.Normalize())
}

// CreatePost publishes a post. The author's own view counts as the first.
func (s *CommunityService) CreatePost(ctx context.Context, userID, categoryID int64, in NewPost) (domain.CommunityPost, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	switch {
	case title == "" || content == "":
		return domain.CommunityPost{}, fmt.Errorf("title and content are required: %w", domain.ErrInvalidArgument)
	case utf8.RuneCountInString(title) > maxPostTitle:
		return domain.CommunityPost{}, fmt.Errorf("title exceeds %d characters: %w", maxPostTitle, domain.ErrInvalidArgument)
	case utf8.RuneCountInString(content) > maxPostContent:
		return domain.CommunityPost{}, fmt.Errorf("content exceeds %d characters: %w", maxPostContent, domain.ErrInvalidArgument)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.CommunityPost{}, err
	}
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return domain.CommunityPost{}, err
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	post := domain.CommunityPost{
		AuthorID:   userID,
		CategoryID: categoryID,
		Title:      title,
		Content:    content,
		Views:      1,
		Tags:       tags,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertPost(ctx, &post); err != nil {
		return domain.CommunityPost{}, err
	}
	return post, nil
}

// Post returns a post and counts the view.
func (s *CommunityService) Post(ctx context.Context, id int64) (domain.CommunityPost, error) {
	var post domain.CommunityPost
	err := s.store.InTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.IncrementPostViews(ctx, id); err != nil {
			return err
		}
		var err error
		post, err = q.GetPost(ctx, id)
		return err
	})
	return post, err
}

// Experts are the top users by balance.
func (s *CommunityService) Experts(ctx context.Context) ([]domain.User, error) {
	return s.store.TopUsers(ctx, expertsLimit)
}
