package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"conduit-api/internal/domain"
	"conduit-api/internal/service"
)

type createArticleRequest struct {
	Article service.CreateArticleInput `json:"article"`
}

type updateArticleRequest struct {
	Article service.UpdateArticleInput `json:"article"`
}

type addCommentRequest struct {
	Comment service.AddCommentInput `json:"comment"`
}

func (h *Handler) listArticles(c *gin.Context) {
	page, err := h.svc.Articles.List(useCaseContext(c), actorID(c), service.ListArticlesInput{
		Tag:       c.Query("tag"),
		Author:    c.Query("author"),
		Favorited: c.Query("favorited"),
		Limit:     c.Query("limit"),
		Offset:    c.Query("offset"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondPage(c, page)
}

func (h *Handler) feed(c *gin.Context) {
	page, err := h.svc.Articles.Feed(useCaseContext(c), actorID(c), service.FeedInput{
		Limit:  c.Query("limit"),
		Offset: c.Query("offset"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondPage(c, page)
}

func respondPage(c *gin.Context, page *domain.ArticlePage) {
	c.JSON(http.StatusOK, gin.H{
		"articles":      articlesToResponse(page.Articles),
		"articlesCount": page.Total,
	})
}

func (h *Handler) getArticle(c *gin.Context) {
	article, err := h.svc.Articles.Get(useCaseContext(c), actorID(c), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondArticle(c, article)
}

func (h *Handler) createArticle(c *gin.Context) {
	req, err := decodeBody[createArticleRequest](c, h.opts.MaxBodyBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	article, err := h.svc.Articles.Create(useCaseContext(c), actorID(c), req.Article)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondArticle(c, article)
}

func (h *Handler) updateArticle(c *gin.Context) {
	req, err := decodeBody[updateArticleRequest](c, h.opts.MaxBodyBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	article, err := h.svc.Articles.Update(useCaseContext(c), actorID(c), c.Param("slug"), req.Article)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondArticle(c, article)
}

func (h *Handler) deleteArticle(c *gin.Context) {
	if err := h.svc.Articles.Delete(useCaseContext(c), actorID(c), c.Param("slug")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) favorite(c *gin.Context) {
	article, err := h.svc.Articles.Favorite(useCaseContext(c), actorID(c), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondArticle(c, article)
}

func (h *Handler) unfavorite(c *gin.Context) {
	article, err := h.svc.Articles.Unfavorite(useCaseContext(c), actorID(c), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondArticle(c, article)
}

func respondArticle(c *gin.Context, article *domain.ArticleView) {
	c.JSON(http.StatusOK, gin.H{"article": articleToResponse(*article)})
}

func (h *Handler) listComments(c *gin.Context) {
	comments, err := h.svc.Comments.List(useCaseContext(c), actorID(c), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]CommentResponse, len(comments))
	for i := range comments {
		resp[i] = commentToResponse(comments[i])
	}
	c.JSON(http.StatusOK, gin.H{"comments": resp})
}

func (h *Handler) addComment(c *gin.Context) {
	req, err := decodeBody[addCommentRequest](c, h.opts.MaxBodyBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	comment, err := h.svc.Comments.Add(useCaseContext(c), actorID(c), c.Param("slug"), req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": commentToResponse(*comment)})
}

func (h *Handler) deleteComment(c *gin.Context) {
	err := h.svc.Comments.Delete(useCaseContext(c), actorID(c), c.Param("slug"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) listTags(c *gin.Context) {
	tags, err := h.svc.Tags.List(useCaseContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}
