// Package seed loads the bundled demo categories and reviews.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
	"github.com/ekaya-inc/review-engine/pkg/models"
	"github.com/ekaya-inc/review-engine/pkg/repositories"
)

//go:embed seed.yaml
var fixtureYAML []byte

// Fixture is the seed file layout.
type Fixture struct {
	Categories []CategoryFixture `yaml:"categories"`
}

type CategoryFixture struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Reviews     []ReviewFixture `yaml:"reviews"`
}

type ReviewFixture struct {
	Text  string `yaml:"text"`
	Stars int    `yaml:"stars"`
}

// LoadFixture parses a seed document.
func LoadFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed fixture: %w", err)
	}
	for _, c := range f.Categories {
		if c.Name == "" {
			return nil, errors.New("parse seed fixture: category without name")
		}
		for _, r := range c.Reviews {
			if r.Stars < 1 || r.Stars > 10 {
				return nil, fmt.Errorf("parse seed fixture: %s review %q has %d stars", c.Name, r.Text, r.Stars)
			}
		}
	}
	return &f, nil
}

// DefaultFixture returns the bundled demo data.
func DefaultFixture() (*Fixture, error) {
	return LoadFixture(fixtureYAML)
}

// Result counts what Run did.
type Result struct {
	CategoriesCreated int
	CategoriesSkipped int
	ReviewsCreated    int
}

// Seeder inserts a Fixture. Categories are matched by name; an existing
// category and its reviews are left untouched.
type Seeder struct {
	categories repositories.CategoryRepository
	reviews    repositories.ReviewRepository
	now        func() time.Time
	logger     *zap.Logger
}

func NewSeeder(categories repositories.CategoryRepository, reviews repositories.ReviewRepository, logger *zap.Logger) *Seeder {
	return &Seeder{
		categories: categories,
		reviews:    reviews,
		now:        time.Now,
		logger:     logger.Named("seed"),
	}
}

// Run inserts f using the database scope in ctx. The review at index i of a
// category gets review id rev_<category id>_<i> and is dated i days ago.
func (s *Seeder) Run(ctx context.Context, f *Fixture) (Result, error) {
	var res Result
	now := s.now().UTC()

	for _, cf := range f.Categories {
		_, err := s.categories.GetByName(ctx, cf.Name)
		if err == nil {
			res.CategoriesSkipped++
			s.logger.Debug("Category exists, skipping", zap.String("category", cf.Name))
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return res, err
		}

		category := &models.Category{Name: cf.Name}
		if cf.Description != "" {
			desc := cf.Description
			category.Description = &desc
		}
		if err := s.categories.Create(ctx, category); err != nil {
			return res, err
		}
		res.CategoriesCreated++

		for i, rf := range cf.Reviews {
			text := rf.Text
			review := &models.ReviewHistory{
				Text:       &text,
				Stars:      rf.Stars,
				ReviewID:   fmt.Sprintf("rev_%d_%d", category.ID, i),
				CreatedAt:  now.AddDate(0, 0, -i),
				CategoryID: category.ID,
			}
			if err := s.reviews.Create(ctx, review); err != nil {
				return res, err
			}
			res.ReviewsCreated++
		}
	}

	s.logger.Info("Seed finished",
		zap.Int("categories_created", res.CategoriesCreated),
		zap.Int("categories_skipped", res.CategoriesSkipped),
		zap.Int("reviews_created", res.ReviewsCreated))
	return res, nil
}
