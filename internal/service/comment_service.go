package service

import (
	"context"
	"strconv"
	"strings"

	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
	"conduit-api/internal/validate"
)

// AddCommentInput is the payload of POST /api/articles/:slug/comments.
type AddCommentInput struct {
	Body string `json:"body" validate:"notblank,max=10000"`
}

// CommentService manages comments on articles.
type CommentService interface {
	Add(ctx context.Context, actorID, slug string, in AddCommentInput) (*domain.CommentView, error)
	List(ctx context.Context, viewerID, slug string) ([]domain.CommentView, error)
	Delete(ctx context.Context, actorID, slug, id string) error
}

type commentService struct {
	comments  repository.CommentRepository
	articles  repository.ArticleRepository
	users     repository.UserRepository
	relations repository.RelationshipRepository
}

func NewCommentService(
	comments repository.CommentRepository,
	articles repository.ArticleRepository,
	users repository.UserRepository,
	relations repository.RelationshipRepository,
) CommentService {
	return &commentService{
		comments:  comments,
		articles:  articles,
		users:     users,
		relations: relations,
	}
}

func (s *commentService) Add(ctx context.Context, actorID, slugValue string, in AddCommentInput) (*domain.CommentView, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	article, err := s.article(ctx, slugValue)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{Body: in.Body, AuthorID: actorID}
	if err := s.comments.Create(ctx, article.ID, comment); err != nil {
		return nil, err
	}
	comment.ArticleSlug = article.Slug

	author, err := newProfiles(s.users, s.relations).of(ctx, actorID, actorID)
	if err != nil {
		return nil, err
	}
	return &domain.CommentView{Comment: *comment, Author: author}, nil
}

func (s *commentService) List(ctx context.Context, viewerID, slugValue string) ([]domain.CommentView, error) {
	article, err := s.article(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByArticle(ctx, article.ID)
	if err != nil {
		return nil, err
	}

	authors := newProfiles(s.users, s.relations)
	views := make([]domain.CommentView, 0, len(comments))
	for _, c := range comments {
		author, err := authors.of(ctx, viewerID, c.AuthorID)
		if err != nil {
			return nil, err
		}
		views = append(views, domain.CommentView{Comment: c, Author: author})
	}
	return views, nil
}

// Delete removes a comment. Only its author may do so; the comment must belong to the
// article named by slug.
func (s *commentService) Delete(ctx context.Context, actorID, slugValue, rawID string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id <= 0 {
		return domain.Validation("id is invalid")
	}
	article, err := s.article(ctx, slugValue)
	if err != nil {
		return err
	}
	comment, err := s.comments.Get(ctx, article.ID, id)
	if err != nil {
		return err
	}
	if comment.AuthorID != actorID {
		return domain.Forbidden("only the author may delete this comment")
	}
	return s.comments.Delete(ctx, comment.ID)
}

func (s *commentService) article(ctx context.Context, slugValue string) (*domain.Article, error) {
	ref := slugRef{Slug: strings.TrimSpace(slugValue)}
	if err := validate.Struct(ref); err != nil {
		return nil, err
	}
	return s.articles.GetBySlug(ctx, ref.Slug)
}
