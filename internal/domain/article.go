package domain

import "time"

// Article is a post owned by its author.
type Article struct {
	ID             int64
	Slug           string
	Title          string
	Description    string
	Body           string
	TagList        []string
	AuthorID       string
	FavoritesCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ArticleChanges carries the fields of a partial article update; nil means unchanged.
type ArticleChanges struct {
	Slug        *string
	Title       *string
	Description *string
	Body        *string
	TagList     []string
}

// ArticleFilter selects articles for list and feed queries.
// Every non-empty predicate must match.
type ArticleFilter struct {
	Tag         string
	Author      string // username
	FavoritedBy string // username
	AuthorIDs   []string // nil means any author
	Limit       int
	Offset      int
}

// ArticleView is an article shaped for a specific viewer.
type ArticleView struct {
	Article   Article
	Author    Profile
	Favorited bool
}

// ArticlePage is one page of a list query plus the total number of matches.
type ArticlePage struct {
	Articles []ArticleView
	Total    int
}

// Comment belongs to an article and its author.
type Comment struct {
	ID          int64
	Body        string
	AuthorID    string
	ArticleSlug string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommentView is a comment shaped for a specific viewer.
type CommentView struct {
	Comment Comment
	Author  Profile
}
