package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
	"conduit-api/internal/repository/sqlite"
)

type repos struct {
	users     repository.UserRepository
	relations repository.RelationshipRepository
	articles  repository.ArticleRepository
	comments  repository.CommentRepository
}

func newTestDB(t *testing.T) (*sql.DB, repos) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := repos{
		users:     sqlite.NewUserRepository(db),
		relations: sqlite.NewRelationshipRepository(db),
		articles:  sqlite.NewArticleRepository(db),
		comments:  sqlite.NewCommentRepository(db),
	}
	ctx := context.Background()
	require.NoError(t, r.users.Init(ctx))
	require.NoError(t, r.relations.Init(ctx))
	require.NoError(t, r.articles.Init(ctx))
	require.NoError(t, r.comments.Init(ctx))
	return db, r
}

func createUser(t *testing.T, r repos, username string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	}
	require.NoError(t, r.users.Create(context.Background(), user))
	return user
}

func createArticle(t *testing.T, r repos, author *domain.User, slug string, tags ...string) *domain.Article {
	t.Helper()
	article := &domain.Article{
		Slug:        slug,
		Title:       slug,
		Description: "about " + slug,
		Body:        "body of " + slug,
		TagList:     tags,
		AuthorID:    author.ID,
	}
	require.NoError(t, r.articles.Create(context.Background(), article))
	return article
}
