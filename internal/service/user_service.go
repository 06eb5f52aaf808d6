package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"conduit-api/internal/domain"
	"conduit-api/internal/repository"
	"conduit-api/internal/storage"
	"conduit-api/internal/validate"
)

// RegisterInput is the payload of POST /api/users.
type RegisterInput struct {
	Username string `json:"username" validate:"notblank,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginInput is the payload of POST /api/users/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserInput is the payload of PUT /api/user; nil fields are left unchanged.
type UpdateUserInput struct {
	Username *string `json:"username" validate:"omitnil,notblank,max=64"`
	Email    *string `json:"email" validate:"omitnil,email"`
	Password *string `json:"password" validate:"omitnil,max=72"`
	Bio      *string `json:"bio" validate:"omitnil,max=2048"`
	Image    *string `json:"image" validate:"omitnil,max=2048"`
}

// ImageUpload is an avatar file received from a client.
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in LoginInput) (*domain.User, error)
	Current(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, in UpdateUserInput) (*domain.User, error)
	UploadImage(ctx context.Context, userID string, upload ImageUpload) (*domain.User, error)
}

type userService struct {
	users      repository.UserRepository
	images     storage.Service
	bcryptCost int
}

// NewUserService builds the user use cases. images may be nil when avatar uploads are
// not configured.
func NewUserService(users repository.UserRepository, images storage.Service, bcryptCost int) UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &userService{
		users:      users,
		images:     images,
		bcryptCost: bcryptCost,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, &in.Username, &in.Email, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, in LoginInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, errInvalidCredentials()
	}

	return sanitizeUser(user), nil
}

func (s *userService) Current(ctx context.Context, userID string) (*domain.User, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) Update(ctx context.Context, userID string, in UpdateUserInput) (*domain.User, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	in.Username = trimmed(in.Username)
	in.Email = trimmed(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.ensureAvailable(ctx, in.Username, in.Email, userID); err != nil {
		return nil, err
	}

	changes := domain.UserChanges{
		Username: in.Username,
		Email:    in.Email,
		Bio:      in.Bio,
		Image:    in.Image,
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		changes.PasswordHash = &h
	}

	user, err := s.users.Update(ctx, userID, changes)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UploadImage(ctx context.Context, userID string, upload ImageUpload) (*domain.User, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, domain.Validation("image uploads are not configured")
	}
	if upload.Body == nil {
		return nil, domain.Validation("image can't be blank")
	}
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return nil, domain.Validation("image must be an image file")
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), strings.ToLower(path.Ext(upload.Filename)))
	url, err := s.images.Upload(ctx, storage.Object{
		Key:         key,
		Body:        upload.Body,
		ContentType: upload.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	user, err := s.users.Update(ctx, userID, domain.UserChanges{Image: &url})
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// ensureAvailable reports CONFLICT when username or email already belongs to a user other
// than exceptID. Nil values are not checked.
func (s *userService) ensureAvailable(ctx context.Context, username, email *string, exceptID string) error {
	if username != nil {
		taken, err := s.users.UsernameTaken(ctx, *username, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return domain.Conflict("username", nil)
		}
	}
	if email != nil {
		taken, err := s.users.EmailTaken(ctx, *email, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return domain.Conflict("email", nil)
		}
	}
	return nil
}

func errInvalidCredentials() error {
	return domain.Validation("email or password is invalid")
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Bio:       user.Bio,
		Image:     user.Image,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func requireActor(userID string) error {
	if userID == "" {
		return domain.Unauthenticated(nil)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
