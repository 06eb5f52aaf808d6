package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
)

const createCommentsTable = `
CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	article_id INTEGER NOT NULL,
	author_id TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(article_id) REFERENCES articles(id) ON DELETE CASCADE,
	FOREIGN KEY(author_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_comments_article_id ON comments(article_id);
`

const commentColumns = `c.id, c.body, c.author_id, a.slug, c.created_at, c.updated_at`

type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) repository.CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createCommentsTable); err != nil {
		return fmt.Errorf("create comments table: %w", err)
	}
	return nil
}

func (r *CommentRepository) Create(ctx context.Context, articleID int64, comment *domain.Comment) error {
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO comments (article_id, author_id, body, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		articleID,
		comment.AuthorID,
		comment.Body,
		unixNano(comment.CreatedAt),
		unixNano(comment.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("comment last insert id: %w", err)
	}
	comment.ID = id
	return nil
}

func (r *CommentRepository) Get(ctx context.Context, articleID, id int64) (*domain.Comment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+commentColumns+`
FROM comments c JOIN articles a ON a.id = c.article_id
WHERE c.article_id = ? AND c.id = ?`, articleID, id)
	comment, err := scanComment(row)
	if err != nil {
		return nil, notFound(err, "comment")
	}
	return comment, nil
}

func (r *CommentRepository) ListByArticle(ctx context.Context, articleID int64) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+commentColumns+`
FROM comments c JOIN articles a ON a.id = c.article_id
WHERE c.article_id = ?
ORDER BY c.created_at DESC, c.id DESC`, articleID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound("comment")
	}
	return nil
}

func scanComment(row scanner) (*domain.Comment, error) {
	var (
		comment          domain.Comment
		created, updated int64
	)
	if err := row.Scan(
		&comment.ID,
		&comment.Body,
		&comment.AuthorID,
		&comment.ArticleSlug,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}
	comment.CreatedAt = fromUnixNano(created)
	comment.UpdatedAt = fromUnixNano(updated)
	return &comment, nil
}
