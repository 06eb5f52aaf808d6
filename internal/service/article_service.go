package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
	"conduit-api/internal/validate"
)

const slugAttempts = 3

// CreateArticleInput is the payload of POST /api/articles.
type CreateArticleInput struct {
	Title       string   `json:"title" validate:"notblank,max=255"`
	Description string   `json:"description" validate:"notblank,max=1024"`
	Body        string   `json:"body" validate:"notblank"`
	TagList     []string `json:"tagList" validate:"omitempty,max=32,dive,max=64"`
}

// UpdateArticleInput is the payload of PUT /api/articles/:slug. A nil TagList keeps the
// current tags, an empty one clears them.
type UpdateArticleInput struct {
	Title       *string  `json:"title" validate:"omitnil,notblank,max=255"`
	Description *string  `json:"description" validate:"omitnil,notblank,max=1024"`
	Body        *string  `json:"body" validate:"omitnil,notblank"`
	TagList     []string `json:"tagList" validate:"omitempty,max=32,dive,max=64"`
}

// ListArticlesInput holds the raw query of GET /api/articles.
type ListArticlesInput struct {
	Tag       string `json:"tag" validate:"max=64"`
	Author    string `json:"author" validate:"max=64"`
	Favorited string `json:"favorited" validate:"max=64"`
	Limit     string `json:"limit"`
	Offset    string `json:"offset"`
}

// FeedInput holds the raw query of GET /api/articles/feed.
type FeedInput struct {
	Limit  string `json:"limit"`
	Offset string `json:"offset"`
}

type slugRef struct {
	Slug string `json:"slug" validate:"notblank"`
}

// ArticleService covers article authoring, reading and favorites.
type ArticleService interface {
	Create(ctx context.Context, actorID string, in CreateArticleInput) (*domain.ArticleView, error)
	Update(ctx context.Context, actorID, slug string, in UpdateArticleInput) (*domain.ArticleView, error)
	Delete(ctx context.Context, actorID, slug string) error
	Get(ctx context.Context, viewerID, slug string) (*domain.ArticleView, error)
	List(ctx context.Context, viewerID string, in ListArticlesInput) (*domain.ArticlePage, error)
	Feed(ctx context.Context, actorID string, in FeedInput) (*domain.ArticlePage, error)
	Favorite(ctx context.Context, actorID, slug string) (*domain.ArticleView, error)
	Unfavorite(ctx context.Context, actorID, slug string) (*domain.ArticleView, error)
}

type articleService struct {
	articles  repository.ArticleRepository
	users     repository.UserRepository
	relations repository.RelationshipRepository
	tags      TagService
}

func NewArticleService(
	articles repository.ArticleRepository,
	users repository.UserRepository,
	relations repository.RelationshipRepository,
	tags TagService,
) ArticleService {
	return &articleService{
		articles:  articles,
		users:     users,
		relations: relations,
		tags:      tags,
	}
}

func (s *articleService) Create(ctx context.Context, actorID string, in CreateArticleInput) (*domain.ArticleView, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, actorID); err != nil {
		return nil, err
	}

	article := &domain.Article{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Body:        in.Body,
		TagList:     normalizeTags(in.TagList),
		AuthorID:    actorID,
	}

	var err error
	for attempt := 0; attempt < slugAttempts; attempt++ {
		article.Slug, err = s.uniqueSlug(ctx, article.Title, "")
		if err != nil {
			return nil, err
		}
		err = s.articles.Create(ctx, article)
		if !isSlugConflict(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.invalidateTags(ctx, article.TagList)
	return s.view(ctx, newProfiles(s.users, s.relations), actorID, article)
}

func (s *articleService) Update(ctx context.Context, actorID, slugValue string, in UpdateArticleInput) (*domain.ArticleView, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	current, err := s.owned(ctx, actorID, slugValue)
	if err != nil {
		return nil, err
	}

	changes := domain.ArticleChanges{
		Description: in.Description,
		Body:        in.Body,
	}
	if in.TagList != nil {
		changes.TagList = normalizeTags(in.TagList)
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		changes.Title = &title
		if title != current.Title {
			next, err := s.uniqueSlug(ctx, title, current.Slug)
			if err != nil {
				return nil, err
			}
			changes.Slug = &next
		}
	}

	updated, err := s.articles.Update(ctx, current.ID, changes)
	if err != nil {
		return nil, err
	}

	if changes.TagList != nil {
		s.tags.Invalidate(ctx)
	}
	return s.view(ctx, newProfiles(s.users, s.relations), actorID, updated)
}

func (s *articleService) Delete(ctx context.Context, actorID, slugValue string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	article, err := s.owned(ctx, actorID, slugValue)
	if err != nil {
		return err
	}
	if err := s.articles.Delete(ctx, article.ID); err != nil {
		return err
	}
	s.invalidateTags(ctx, article.TagList)
	return nil
}

func (s *articleService) Get(ctx context.Context, viewerID, slugValue string) (*domain.ArticleView, error) {
	article, err := s.find(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, newProfiles(s.users, s.relations), viewerID, article)
}

func (s *articleService) List(ctx context.Context, viewerID string, in ListArticlesInput) (*domain.ArticlePage, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	limit, offset := pageBounds(in.Limit, in.Offset)
	return s.page(ctx, viewerID, domain.ArticleFilter{
		Tag:         strings.TrimSpace(in.Tag),
		Author:      strings.TrimSpace(in.Author),
		FavoritedBy: strings.TrimSpace(in.Favorited),
		Limit:       limit,
		Offset:      offset,
	})
}

func (s *articleService) Feed(ctx context.Context, actorID string, in FeedInput) (*domain.ArticlePage, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	following, err := s.relations.Following(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if len(following) == 0 {
		return &domain.ArticlePage{Articles: []domain.ArticleView{}}, nil
	}
	limit, offset := pageBounds(in.Limit, in.Offset)
	return s.page(ctx, actorID, domain.ArticleFilter{
		AuthorIDs: following,
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *articleService) Favorite(ctx context.Context, actorID, slugValue string) (*domain.ArticleView, error) {
	return s.toggleFavorite(ctx, actorID, slugValue, s.articles.AddFavorite)
}

func (s *articleService) Unfavorite(ctx context.Context, actorID, slugValue string) (*domain.ArticleView, error) {
	return s.toggleFavorite(ctx, actorID, slugValue, s.articles.RemoveFavorite)
}

// toggleFavorite delegates the membership change to the store and re-reads the article so
// the count reflects concurrent writers.
func (s *articleService) toggleFavorite(
	ctx context.Context,
	actorID, slugValue string,
	apply func(ctx context.Context, articleID int64, userID string) error,
) (*domain.ArticleView, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	article, err := s.find(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if err := apply(ctx, article.ID, actorID); err != nil {
		return nil, err
	}
	article, err = s.articles.GetBySlug(ctx, article.Slug)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, newProfiles(s.users, s.relations), actorID, article)
}

func (s *articleService) page(ctx context.Context, viewerID string, filter domain.ArticleFilter) (*domain.ArticlePage, error) {
	articles, total, err := s.articles.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	authors := newProfiles(s.users, s.relations)
	page := &domain.ArticlePage{
		Articles: make([]domain.ArticleView, 0, len(articles)),
		Total:    total,
	}
	for i := range articles {
		v, err := s.view(ctx, authors, viewerID, &articles[i])
		if err != nil {
			return nil, err
		}
		page.Articles = append(page.Articles, *v)
	}
	return page, nil
}

func (s *articleService) view(ctx context.Context, authors *profiles, viewerID string, article *domain.Article) (*domain.ArticleView, error) {
	author, err := authors.of(ctx, viewerID, article.AuthorID)
	if err != nil {
		return nil, err
	}
	favorited, err := s.articles.IsFavorited(ctx, article.ID, viewerID)
	if err != nil {
		return nil, err
	}
	return &domain.ArticleView{
		Article:   *article,
		Author:    author,
		Favorited: favorited,
	}, nil
}

func (s *articleService) find(ctx context.Context, slugValue string) (*domain.Article, error) {
	ref := slugRef{Slug: strings.TrimSpace(slugValue)}
	if err := validate.Struct(ref); err != nil {
		return nil, err
	}
	return s.articles.GetBySlug(ctx, ref.Slug)
}

// owned loads an article and checks the actor wrote it.
func (s *articleService) owned(ctx context.Context, actorID, slugValue string) (*domain.Article, error) {
	article, err := s.find(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if article.AuthorID != actorID {
		return nil, domain.Forbidden("only the author may change this article")
	}
	return article, nil
}

// uniqueSlug derives a slug from title. current is the article's own slug, which is
// reused when the title still maps to it.
func (s *articleService) uniqueSlug(ctx context.Context, title, current string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "article"
	}
	if base == current {
		return current, nil
	}

	candidate := base
	for {
		exists, err := s.articles.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
}

func (s *articleService) invalidateTags(ctx context.Context, tags []string) {
	if len(tags) > 0 {
		s.tags.Invalidate(ctx)
	}
}

func isSlugConflict(err error) bool {
	var de *domain.Error
	return errors.As(err, &de) && de.Kind == domain.KindConflict && de.Field == "slug"
}

// normalizeTags trims tags, drops blanks and keeps the first occurrence of each.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
