package http

import (
	"time"

	"conduit-api/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type UserResponse struct {
	Email    string  `json:"email"`
	Token    string  `json:"token"`
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

type ProfileResponse struct {
	Username  string  `json:"username"`
	Bio       *string `json:"bio"`
	Image     *string `json:"image"`
	Following bool    `json:"following"`
}

type ArticleResponse struct {
	Slug           string          `json:"slug"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Body           string          `json:"body"`
	TagList        []string        `json:"tagList"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
	Favorited      bool            `json:"favorited"`
	FavoritesCount int             `json:"favoritesCount"`
	Author         ProfileResponse `json:"author"`
}

type CommentResponse struct {
	ID        int64           `json:"id"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
	Body      string          `json:"body"`
	Author    ProfileResponse `json:"author"`
}

func userToResponse(user *domain.User, token string) UserResponse {
	return UserResponse{
		Email:    user.Email,
		Token:    token,
		Username: user.Username,
		Bio:      nullable(user.Bio),
		Image:    nullable(user.Image),
	}
}

func profileToResponse(p domain.Profile) ProfileResponse {
	return ProfileResponse{
		Username:  p.Username,
		Bio:       nullable(p.Bio),
		Image:     nullable(p.Image),
		Following: p.Following,
	}
}

func articleToResponse(v domain.ArticleView) ArticleResponse {
	tags := v.Article.TagList
	if tags == nil {
		tags = []string{}
	}
	return ArticleResponse{
		Slug:           v.Article.Slug,
		Title:          v.Article.Title,
		Description:    v.Article.Description,
		Body:           v.Article.Body,
		TagList:        tags,
		CreatedAt:      formatTime(v.Article.CreatedAt),
		UpdatedAt:      formatTime(v.Article.UpdatedAt),
		Favorited:      v.Favorited,
		FavoritesCount: v.Article.FavoritesCount,
		Author:         profileToResponse(v.Author),
	}
}

func articlesToResponse(views []domain.ArticleView) []ArticleResponse {
	resp := make([]ArticleResponse, len(views))
	for i := range views {
		resp[i] = articleToResponse(views[i])
	}
	return resp
}

func commentToResponse(v domain.CommentView) CommentResponse {
	return CommentResponse{
		ID:        v.Comment.ID,
		CreatedAt: formatTime(v.Comment.CreatedAt),
		UpdatedAt: formatTime(v.Comment.UpdatedAt),
		Body:      v.Comment.Body,
		Author:    profileToResponse(v.Author),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
