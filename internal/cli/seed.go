package cli

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"mindquest-service/internal/app"
	"mindquest-service/internal/domain"
	"mindquest-service/internal/infra/postgres"
)

// NewSeedCmd inserts the sample catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample categories, questions and rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := migrateDB(cmd.Context(), db, log); err != nil {
				return err
			}
			return seedCatalog(cmd.Context(), postgres.NewStore(db), log)
		},
	}
}

type seedQuestion struct {
	prompt      string
	options     []string
	correct     int
	explanation string
}

type seedCategory struct {
	category  domain.QuizCategory
	questions []seedQuestion
}

func sampleCatalog() []seedCategory {
	return []seedCategory{
		{
			category: domain.QuizCategory{
				Title:       "Science & Technology",
				Description: "All about science and tech",
				Icon:        "🧬",
				Difficulty:  domain.DifficultyMedium,
				Active:      true,
			},
			questions: []seedQuestion{{
				prompt:      "What is the chemical symbol for water?",
				options:     []string{"H2O", "CO2", "O2", "NaCl"},
				correct:     0,
				explanation: "H2O is the chemical formula for water.",
			}},
		},
		{
			category: domain.QuizCategory{
				Title:       "History & Culture",
				Description: "World history and cultures",
				Icon:        "🏺",
				Difficulty:  domain.DifficultyMedium,
				Active:      true,
			},
			questions: []seedQuestion{{
				prompt:      "Who was the first President of the United States?",
				options:     []string{"Abraham Lincoln", "George Washington", "Thomas Jefferson", "John Adams"},
				correct:     1,
				explanation: "George Washington was the first President.",
			}},
		},
		{
			category: domain.QuizCategory{
				Title:       "Mathematics",
				Description: "Math quizzes",
				Icon:        "➗",
				Difficulty:  domain.DifficultyEasy,
				Active:      true,
			},
			questions: []seedQuestion{{
				prompt:      "What is 7 x 8?",
				options:     []string{"54", "56", "58", "60"},
				correct:     1,
				explanation: "7 multiplied by 8 is 56.",
			}},
		},
	}
}

func sampleRewards() []domain.CryptoReward {
	return []domain.CryptoReward{
		{Name: "Starter Pack", Icon: "🎁", MinPoints: 100, Value: decimal.RequireFromString("0.1"), Available: true, Description: "Welcome bonus for new users"},
		{Name: "Bitcoin Bits", Icon: "₿", MinPoints: 1000, Value: decimal.RequireFromString("0.0001"), Available: true, Description: "A sliver of BTC"},
		{Name: "Ethereum Drop", Icon: "Ξ", MinPoints: 2500, Value: decimal.RequireFromString("0.005"), Available: true, Description: "A small ETH transfer"},
	}
}

// seedCatalog fills an empty catalog; existing data is left alone.
func seedCatalog(ctx context.Context, store app.Store, log *slog.Logger) error {
	return store.InTx(ctx, func(ctx context.Context, q app.Queries) error {
		existing, err := q.AllCategories(ctx)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			for _, sc := range sampleCatalog() {
				category := sc.category
				if err := q.CreateCategory(ctx, &category); err != nil {
					return err
				}
				for _, sq := range sc.questions {
					question := domain.Question{
						CategoryID:    category.ID,
						Prompt:        sq.prompt,
						Options:       sq.options,
						CorrectAnswer: sq.correct,
						Explanation:   sq.explanation,
						Points:        domain.DefaultQuestionPoints,
						TimeLimit:     domain.DefaultQuestionTimeLimit,
						Difficulty:    category.Difficulty,
						Active:        true,
					}
					if err := q.CreateQuestion(ctx, &question); err != nil {
						return err
					}
				}
			}
			log.Info("seeded quiz catalog", "categories", len(sampleCatalog()))
		}

		rewards, err := q.AvailableRewards(ctx)
		if err != nil {
			return err
		}
		if len(rewards) == 0 {
			for _, r := range sampleRewards() {
				reward := r
				if err := q.CreateReward(ctx, &reward); err != nil {
					return err
				}
			}
			log.Info("seeded rewards", "rewards", len(sampleRewards()))
		}
		return nil
	})
}
