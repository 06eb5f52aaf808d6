package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
)

const createArticlesTables = `
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	body TEXT NOT NULL,
	author_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(author_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_articles_created ON articles(created_at DESC, slug ASC);
CREATE INDEX IF NOT EXISTS idx_articles_author ON articles(author_id);

CREATE TABLE IF NOT EXISTS article_tags (
	article_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	tag TEXT NOT NULL,
	PRIMARY KEY (article_id, tag),
	FOREIGN KEY(article_id) REFERENCES articles(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_article_tags_tag ON article_tags(tag);

CREATE TABLE IF NOT EXISTS favorites (
	article_id INTEGER NOT NULL,
	user_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (article_id, user_id),
	FOREIGN KEY(article_id) REFERENCES articles(id) ON DELETE CASCADE,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_favorites_user ON favorites(user_id);
`

const articleColumns = `a.id, a.slug, a.title, a.description, a.body, a.author_id, a.created_at, a.updated_at,
	(SELECT COUNT(*) FROM favorites f WHERE f.article_id = a.id)`

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createArticlesTables); err != nil {
		return fmt.Errorf("create articles tables: %w", err)
	}
	return nil
}

func (r *ArticleRepository) Create(ctx context.Context, article *domain.Article) error {
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	res, err := tx.ExecContext(ctx, `
INSERT INTO articles (slug, title, description, body, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		article.Slug,
		article.Title,
		article.Description,
		article.Body,
		article.AuthorID,
		unixNano(article.CreatedAt),
		unixNano(article.UpdatedAt),
	)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return domain.Conflict(field, err)
		}
		return fmt.Errorf("insert article: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("article last insert id: %w", err)
	}
	if err := replaceTags(ctx, tx, id, article.TagList); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	article.ID = id
	if article.TagList == nil {
		article.TagList = []string{}
	}
	return nil
}

func (r *ArticleRepository) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	return r.getOne(ctx, `a.slug = ?`, slug)
}

func (r *ArticleRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE slug = ?`, slug).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check slug: %w", err)
	}
	return true, nil
}

func (r *ArticleRepository) Update(ctx context.Context, id int64, changes domain.ArticleChanges) (*domain.Article, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		sets = append(sets, column+" = ?")
		args = append(args, *value)
	}
	add("slug", changes.Slug)
	add("title", changes.Title)
	add("description", changes.Description)
	add("body", changes.Body)
	sets = append(sets, "updated_at = ?")
	args = append(args, unixNano(time.Now()), id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	res, err := tx.ExecContext(ctx, `UPDATE articles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if field, ok := uniqueViolation(err); ok {
			return nil, domain.Conflict(field, err)
		}
		return nil, fmt.Errorf("update article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.NotFound("article")
	}
	if changes.TagList != nil {
		if err := replaceTags(ctx, tx, id, changes.TagList); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return r.getOne(ctx, `a.id = ?`, id)
}

func (r *ArticleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFound("article")
	}
	return nil
}

func (r *ArticleRepository) List(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+articleColumns+`
FROM articles a`+where+`
ORDER BY a.created_at DESC, a.slug ASC
LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query articles: %w", err)
	}
	articles, err := collectArticles(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := r.attachTags(ctx, articles); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (r *ArticleRepository) AddFavorite(ctx context.Context, articleID int64, userID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO favorites (article_id, user_id, created_at)
VALUES (?, ?, ?)`,
		articleID,
		userID,
		unixNano(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (r *ArticleRepository) RemoveFavorite(ctx context.Context, articleID int64, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE article_id = ? AND user_id = ?`, articleID, userID); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return nil
}

func (r *ArticleRepository) IsFavorited(ctx context.Context, articleID int64, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM favorites WHERE article_id = ? AND user_id = ?`, articleID, userID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return true, nil
}

func (r *ArticleRepository) Tags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT tag FROM article_tags ORDER BY tag ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

func (r *ArticleRepository) getOne(ctx context.Context, cond string, arg any) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles a WHERE `+cond, arg)
	article, err := scanArticle(row)
	if err != nil {
		return nil, notFound(err, "article")
	}

	list := []domain.Article{*article}
	if err := r.attachTags(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// attachTags loads tag lists for all articles with one query. Rows are fully read before
// returning so the single pooled connection is free again.
func (r *ArticleRepository) attachTags(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}
	index := make(map[int64]int, len(articles))
	placeholders := make([]string, len(articles))
	args := make([]any, len(articles))
	for i := range articles {
		articles[i].TagList = []string{}
		index[articles[i].ID] = i
		placeholders[i] = "?"
		args[i] = articles[i].ID
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT article_id, tag
FROM article_tags
WHERE article_id IN (`+strings.Join(placeholders, ", ")+`)
ORDER BY article_id ASC, position ASC`, args...)
	if err != nil {
		return fmt.Errorf("query article tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return fmt.Errorf("scan article tag: %w", err)
		}
		if i, ok := index[id]; ok {
			articles[i].TagList = append(articles[i].TagList, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate article tags: %w", err)
	}
	return nil
}

func replaceTags(ctx context.Context, tx *sql.Tx, articleID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM article_tags WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO article_tags (article_id, position, tag)
VALUES (?, ?, ?)`,
			articleID,
			i,
			tag,
		); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

func filterClause(filter domain.ArticleFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Tag != "" {
		conds = append(conds, `a.id IN (SELECT article_id FROM article_tags WHERE tag = ?)`)
		args = append(args, filter.Tag)
	}
	if filter.Author != "" {
		conds = append(conds, `a.author_id IN (SELECT id FROM users WHERE username = ?)`)
		args = append(args, filter.Author)
	}
	if filter.FavoritedBy != "" {
		conds = append(conds, `a.id IN (
	SELECT f.article_id FROM favorites f JOIN users u ON u.id = f.user_id WHERE u.username = ?)`)
		args = append(args, filter.FavoritedBy)
	}
	if filter.AuthorIDs != nil {
		if len(filter.AuthorIDs) == 0 {
			conds = append(conds, `0`)
		} else {
			conds = append(conds, `a.author_id IN (?`+strings.Repeat(`, ?`, len(filter.AuthorIDs)-1)+`)`)
			for _, id := range filter.AuthorIDs {
				args = append(args, id)
			}
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conds, "\n  AND "), args
}

func collectArticles(rows *sql.Rows) ([]domain.Article, error) {
	defer rows.Close()

	articles := []domain.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func scanArticle(row scanner) (*domain.Article, error) {
	var (
		article          domain.Article
		created, updated int64
	)
	if err := row.Scan(
		&article.ID,
		&article.Slug,
		&article.Title,
		&article.Description,
		&article.Body,
		&article.AuthorID,
		&created,
		&updated,
		&article.FavoritesCount,
	); err != nil {
		return nil, err
	}
	article.CreatedAt = fromUnixNano(created)
	article.UpdatedAt = fromUnixNano(updated)
	return &article, nil
}
