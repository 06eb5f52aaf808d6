package repository

import (
	"context"

	"conduit-api/internal/domain"
)

// ArticleRepository exposes persistence operations for articles, their tags and favorites.
type ArticleRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, article *domain.Article) error
	GetBySlug(ctx context.Context, slug string) (*domain.Article, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, id int64, changes domain.ArticleChanges) (*domain.Article, error)
	Delete(ctx context.Context, id int64) error
	// List returns the requested page ordered by creation time descending, slug ascending,
	// together with the number of all matching articles.
	List(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, int, error)
	// AddFavorite and RemoveFavorite are idempotent set-membership changes.
	AddFavorite(ctx context.Context, articleID int64, userID string) error
	RemoveFavorite(ctx context.Context, articleID int64, userID string) error
	IsFavorited(ctx context.Context, articleID int64, userID string) (bool, error)
	Tags(ctx context.Context) ([]string, error)
}

// CommentRepository manages comments attached to articles.
type CommentRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, articleID int64, comment *domain.Comment) error
	Get(ctx context.Context, articleID, id int64) (*domain.Comment, error)
	ListByArticle(ctx context.Context, articleID int64) ([]domain.Comment, error)
	Delete(ctx context.Context, id int64) error
}
