package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"conduit-api/internal/auth"
	"conduit-api/internal/domain"
	"conduit-api/internal/service"
	"conduit-api/internal/validate"
)

// Services groups the use cases the HTTP layer dispatches to.
type Services struct {
	Users    service.UserService
	Profiles service.ProfileService
	Articles service.ArticleService
	Comments service.CommentService
	Tags     service.TagService
}

const (
	defaultMaxBodyBytes  = 1 << 20
	defaultMaxImageBytes = 5 << 20
)

// Options tunes router-wide middleware. A zero RateLimit disables rate limiting; zero
// body limits fall back to 1 MiB for JSON and 5 MiB for image uploads.
type Options struct {
	RateLimit     float64
	RateBurst     int
	MaxBodyBytes  int64
	MaxImageBytes int64
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	svc    Services
	tokens *auth.Tokens
	opts   Options
	log    logrus.FieldLogger
}

func NewHandler(svc Services, tokens *auth.Tokens, opts Options, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = defaultMaxImageBytes
	}
	return &Handler{
		svc:    svc,
		tokens: tokens,
		opts:   opts,
		log:    log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(logRequests(h.log))
	router.Use(corsMiddleware())
	if h.opts.RateLimit > 0 {
		router.Use(newIPLimiter(h.opts.RateLimit, h.opts.RateBurst, limiterIdleTTL).middleware())
	}
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	required := h.requireAuth()
	optional := h.optionalAuth()

	api := router.Group("/api")
	{
		api.POST("/users", h.register)
		api.POST("/users/login", h.login)
		api.GET("/user", required, h.currentUser)
		api.PUT("/user", required, h.updateUser)
		api.POST("/user/image", required, h.uploadImage)

		api.GET("/profiles/:username", optional, h.getProfile)
		api.POST("/profiles/:username/follow", required, h.follow)
		api.DELETE("/profiles/:username/follow", required, h.unfollow)

		api.GET("/articles", optional, h.listArticles)
		api.GET("/articles/feed", required, h.feed)
		api.POST("/articles", required, h.createArticle)
		api.GET("/articles/:slug", optional, h.getArticle)
		api.PUT("/articles/:slug", required, h.updateArticle)
		api.DELETE("/articles/:slug", required, h.deleteArticle)
		api.POST("/articles/:slug/favorite", required, h.favorite)
		api.DELETE("/articles/:slug/favorite", required, h.unfavorite)

		api.GET("/articles/:slug/comments", optional, h.listComments)
		api.POST("/articles/:slug/comments", required, h.addComment)
		api.DELETE("/articles/:slug/comments/:id", required, h.deleteComment)

		api.GET("/tags", h.listTags)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

// useCaseContext detaches the use case from client disconnects so multi-step writes
// run to completion.
func useCaseContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// decodeBody reads a size-capped JSON body into T, reporting type and rule failures
// together.
func decodeBody[T any](c *gin.Context, limit int64) (T, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	return validate.Decode[T](c.Request.Body)
}

type registerRequest struct {
	User service.RegisterInput `json:"user"`
}

type loginRequest struct {
	User service.LoginInput `json:"user"`
}

type updateUserRequest struct {
	User service.UpdateUserInput `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	req, err := decodeBody[registerRequest](c, h.opts.MaxBodyBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.svc.Users.Register(useCaseContext(c), req.User)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondUser(c, user)
}

func (h *Handler) login(c *gin.Context) {
	req, err := decodeBody[loginRequest](c, h.opts.MaxBodyBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.svc.Users.Login(useCaseContext(c), req.User)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondUser(c, user)
}

func (h *Handler) currentUser(c *gin.Context) {
	user, err := h.svc.Users.Current(useCaseContext(c), actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userToResponse(user, c.GetString(ctxToken))})
}

func (h *Handler) updateUser(c *gin.Context) {
	req, err := decodeBody[updateUserRequest](c, h.opts.MaxBodyBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.svc.Users.Update(useCaseContext(c), actorID(c), req.User)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondUser(c, user)
}

func (h *Handler) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxImageBytes)
	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, domain.NewError(domain.KindValidation, "image is too large", err))
			return
		}
		h.respondError(c, domain.Validation("image can't be blank"))
		return
	}
	file, err := header.Open()
	if err != nil {
		h.respondError(c, domain.Validation("image can't be read"))
		return
	}
	defer file.Close()

	user, err := h.svc.Users.UploadImage(useCaseContext(c), actorID(c), service.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondUser(c, user)
}

// respondUser issues a fresh token for user and writes the user envelope.
func (h *Handler) respondUser(c *gin.Context, user *domain.User) {
	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userToResponse(user, token)})
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.svc.Profiles.Get(useCaseContext(c), actorID(c), c.Param("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileToResponse(profile)})
}

func (h *Handler) follow(c *gin.Context) {
	profile, err := h.svc.Profiles.Follow(useCaseContext(c), actorID(c), c.Param("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileToResponse(profile)})
}

func (h *Handler) unfollow(c *gin.Context) {
	profile, err := h.svc.Profiles.Unfollow(useCaseContext(c), actorID(c), c.Param("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profileToResponse(profile)})
}
