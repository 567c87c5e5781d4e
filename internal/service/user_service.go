package service

import (
	"certprep_backend/internal/model"
	"certprep_backend/internal/repository"
	"certprep_backend/internal/util"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// UserService 处理用户资料相关的业务逻辑
type UserService struct {
	UserRepo *repository.UserRepository
	Storage  *StorageService
	Clock    Clock
}

func NewUserService(userRepo *repository.UserRepository, storage *StorageService) *UserService {
	return &UserService{
		UserRepo: userRepo,
		Storage:  storage,
		Clock:    SystemClock,
	}
}

func (s *UserService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(id)
	if err != nil {
		return nil, util.ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile 更新用户可自行修改的字段
func (s *UserService) UpdateProfile(userID uint, name string) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, util.ErrUserNotFound
	}

	if name != "" {
		user.Name = name
	}
	user.UpdatedAt = s.Clock.Now()

	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadAvatar 校验并保存头像，返回可访问的URL
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if size > util.MaxAvatarSize {
		return "", fmt.Errorf("文件大小超出限制")
	}
	if contentType != "" && !strings.HasPrefix(contentType, util.MimeImage) {
		return "", fmt.Errorf("只支持图片文件")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, e := range util.AllowedImageExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", fmt.Errorf("不支持的文件类型: %s", ext)
	}

	objectName := fmt.Sprintf("avatars/%d_%d%s", userID, time.Now().UnixNano(), ext)
	url, err := s.Storage.Upload(ctx, objectName, reader, size, contentType)
	if err != nil {
		return "", err
	}

	if err := s.UserRepo.UpdateAvatar(userID, url); err != nil {
		return "", err
	}
	return url, nil
}
