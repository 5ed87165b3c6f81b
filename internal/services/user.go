package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/pkg/apperror"
	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
	"github.com/vidtube/vidtube/pkg/storage"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo *repository.UserRepository
	reader   *readmodel.Reader
	sessions *SessionService
	media    MediaStorage
	producer EventPublisher
	resetTTL time.Duration
	logger   *logger.Logger
}

func NewUserService(userRepo *repository.UserRepository, reader *readmodel.Reader, sessions *SessionService, media MediaStorage, producer EventPublisher, resetTTL time.Duration, logger *logger.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		reader:   reader,
		sessions: sessions,
		media:    media,
		producer: producer,
		resetTTL: resetTTL,
		logger:   logger,
	}
}

type RegisterRequest struct {
	Username string `form:"username" json:"username" binding:"required,min=5,max=30"`
	FullName string `form:"fullName" json:"fullName" binding:"required,min=2,max=80"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type UpdateDetailsRequest struct {
	FullName *string `json:"fullName" binding:"omitempty,min=2,max=80"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	PasswordResetToken string `json:"passwordResetToken" binding:"required"`
	NewPassword        string `json:"newPassword" binding:"required,min=6,max=72"`
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest, avatar, cover *FileUpload) (*models.User, error) {
	username := normalizeUsername(req.Username)
	email := normalizeEmail(req.Email)

	// 检查用户名或邮箱是否已被占用
	existing, err := s.userRepo.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, apperror.Conflict("user with this username or email already exists")
	}

	if err := ValidateImage(avatar, AvatarRule); err != nil {
		return nil, err
	}
	if cover != nil {
		if err := ValidateImage(cover, CoverRule); err != nil {
			return nil, err
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 上传头像和封面
	avatarMedia, err := uploadMedia(ctx, s.media, storage.FolderAvatars, avatar)
	if err != nil {
		return nil, err
	}
	uploaded := []string{avatarMedia.StorageID}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
		FullName: strings.TrimSpace(req.FullName),
		Avatar:   avatarMedia,
	}
	if cover != nil {
		coverMedia, err := uploadMedia(ctx, s.media, storage.FolderCovers, cover)
		if err != nil {
			s.discard(ctx, uploaded...)
			return nil, err
		}
		user.CoverImage = &coverMedia
		uploaded = append(uploaded, coverMedia.StorageID)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.discard(ctx, uploaded...)
		if repository.IsDuplicate(err) {
			return nil, apperror.Conflict("user with this username or email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	event := queue.NewEvent(queue.EventUserRegistered, queue.UserEventData{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
	})
	if err := s.producer.Publish(ctx, user.ID.Hex(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish user registered event")
	}

	s.logger.WithField("user_id", user.ID.Hex()).Info("User registered successfully")
	return user, nil
}

func (s *UserService) discard(ctx context.Context, storageIDs ...string) {
	discardUploads(ctx, s.media, s.logger, storageIDs...)
}

func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*models.User, *TokenPair, error) {
	username := normalizeUsername(req.Username)
	email := normalizeEmail(req.Email)
	if username == "" && email == "" {
		return nil, nil, apperror.InvalidArgument("username or email is required")
	}

	user, err := s.userRepo.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil, apperror.Unauthorized("invalid user credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, nil, apperror.Unauthorized("invalid user credentials")
	}

	tokens, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithField("user_id", user.ID.Hex()).Info("User logged in successfully")
	return user, tokens, nil
}

func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.Revoke(ctx, userID); err != nil {
		return err
	}
	s.logger.WithField("user_id", userID).Info("User logged out successfully")
	return nil
}

func (s *UserService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}

func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	id, err := models.ParseID(userID, "user id")
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperror.NotFound("user not found")
	}
	return user, nil
}

func (s *UserService) UpdateDetails(ctx context.Context, userID string, req *UpdateDetailsRequest) (*models.User, error) {
	id, err := models.ParseID(userID, "user id")
	if err != nil {
		return nil, err
	}

	fields := bson.M{}
	if req.FullName != nil {
		fields["fullName"] = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		other, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if other != nil && other.ID != id {
			return nil, apperror.Conflict("email is already in use")
		}
		fields["email"] = email
	}
	if len(fields) == 0 {
		return nil, apperror.InvalidArgument("fullName or email is required")
	}

	user, err := s.userRepo.UpdateFields(ctx, id, fields)
	if err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperror.Conflict("email is already in use")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if user == nil {
		return nil, apperror.NotFound("user not found")
	}

	s.logger.WithField("user_id", userID).Info("User details updated successfully")
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		return apperror.InvalidArgument("old password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if _, err := s.userRepo.UpdateFields(ctx, user.ID, bson.M{"password": string(hashedPassword)}); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.WithField("user_id", userID).Info("Password changed successfully")
	return nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID string, file *FileUpload) (*models.User, error) {
	return s.replaceImage(ctx, userID, "avatar", storage.FolderAvatars, AvatarRule, file)
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID string, file *FileUpload) (*models.User, error) {
	return s.replaceImage(ctx, userID, "coverImage", storage.FolderCovers, CoverRule, file)
}

func (s *UserService) replaceImage(ctx context.Context, userID, field, folder string, rule ImageRule, file *FileUpload) (*models.User, error) {
	id, err := models.ParseID(userID, "user id")
	if err != nil {
		return nil, err
	}
	if err := ValidateImage(file, rule); err != nil {
		return nil, err
	}

	media, err := uploadMedia(ctx, s.media, folder, file)
	if err != nil {
		return nil, err
	}

	previous, err := s.userRepo.ReplaceMedia(ctx, id, field, media)
	if err != nil {
		s.discard(ctx, media.StorageID)
		return nil, err
	}
	if previous == nil {
		s.discard(ctx, media.StorageID)
		return nil, apperror.NotFound("user not found")
	}

	// 旧文件交给 worker 异步删除
	var previousID string
	if field == "avatar" {
		previousID = previous.Avatar.StorageID
	} else if previous.CoverImage != nil {
		previousID = previous.CoverImage.StorageID
	}
	if previousID != "" {
		event := queue.NewEvent(queue.EventMediaReplaced, queue.MediaReplacedEventData{
			UserID:            userID,
			Field:             field,
			PreviousStorageID: previousID,
		})
		if err := s.producer.Publish(ctx, userID, event); err != nil {
			s.logger.WithError(err).Error("Failed to publish media replaced event")
		}
	}

	updated := *previous
	if field == "avatar" {
		updated.Avatar = media
	} else {
		updated.CoverImage = &media
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"field":   field,
	}).Info("User image updated successfully")
	return &updated, nil
}

func (s *UserService) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return apperror.NotFound("no user with this email exists")
	}

	reset := models.PasswordReset{
		Token:       strings.ReplaceAll(uuid.NewString(), "-", ""),
		TokenExpiry: time.Now().UTC().Add(s.resetTTL),
	}
	if err := s.userRepo.SetPasswordReset(ctx, user.ID, reset); err != nil {
		return err
	}

	// 邮件由外部 mailer 消费该事件发送
	event := queue.NewEvent(queue.EventPasswordResetRequested, queue.PasswordResetEventData{
		UserID:    user.ID.Hex(),
		Email:     user.Email,
		Token:     reset.Token,
		ExpiresAt: reset.TokenExpiry,
	})
	if err := s.producer.Publish(ctx, user.ID.Hex(), event); err != nil {
		return fmt.Errorf("failed to queue password reset email: %w", err)
	}

	s.logger.WithField("user_id", user.ID.Hex()).Info("Password reset requested")
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	token := strings.TrimSpace(req.PasswordResetToken)

	// 1. 先过滤无效 token，避免无谓的 bcrypt 计算
	user, err := s.userRepo.GetByResetToken(ctx, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return apperror.InvalidArgument("password reset token is invalid or has expired")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// 2. 按 token 原子地消费，并发请求只有一个能成功
	user, err = s.userRepo.ResetPassword(ctx, token, time.Now().UTC(), string(hashedPassword))
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.InvalidArgument("password reset token is invalid or has expired")
	}

	if err := s.sessions.Revoke(ctx, user.ID.Hex()); err != nil {
		s.logger.WithError(err).Warn("Failed to revoke sessions after password reset")
	}

	s.logger.WithField("user_id", user.ID.Hex()).Info("Password reset successfully")
	return nil
}

func (s *UserService) ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error) {
	viewer, err := models.ParseOptionalID(viewerID, "viewer id")
	if err != nil {
		return nil, err
	}
	return s.reader.ChannelProfile(ctx, username, viewer)
}

func (s *UserService) WatchHistory(ctx context.Context, userID string, opts readmodel.Options) (*readmodel.Page[models.WatchedVideo], error) {
	return s.reader.WatchHistory(ctx, userID, opts)
}
