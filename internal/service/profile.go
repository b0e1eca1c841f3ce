package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/manish-shre/KKMS/internal/asset"
	"github.com/manish-shre/KKMS/internal/model"
	"github.com/manish-shre/KKMS/internal/resource"
	"github.com/manish-shre/KKMS/internal/store"
	"github.com/manish-shre/KKMS/internal/toast"
	"gorm.io/gorm"
)

const (
	AvatarBucket = "images"
	AvatarFolder = "avatars"
)

// ProfileUpdate is the admin's own profile form. Nil fields are left as is.
type ProfileUpdate struct {
	FullName *string
	Avatar   *resource.Upload
	Password *model.PasswordChange
}

type ProfileService struct {
	db     *gorm.DB
	assets resource.Assets
	auth   *AuthService
	toasts toast.Notifier
}

func NewProfileService(db *gorm.DB, assets resource.Assets, auth *AuthService, toasts toast.Notifier) *ProfileService {
	if toasts == nil {
		toasts = toast.Log{}
	}
	return &ProfileService{db: db, assets: assets, auth: auth, toasts: toasts}
}

func (s *ProfileService) Get(ctx context.Context, uid string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.WithContext(ctx).Where("id = ?", uid).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// Update applies name, avatar and password changes in that order and
// reports the outcome as a single toast.
func (s *ProfileService) Update(ctx context.Context, uid string, u ProfileUpdate) (p *model.Profile, err error) {
	defer func() {
		if err != nil {
			s.toasts.Error("Failed to update profile")
			return
		}
		s.toasts.Success("Profile updated successfully")
	}()

	cols := map[string]any{}
	if u.FullName != nil {
		cols["full_name"] = *u.FullName
	}
	if u.Avatar != nil && u.Avatar.Body != nil {
		name := asset.ObjectName(AvatarFolder, u.Avatar.Filename)
		if err := s.assets.Upload(ctx, AvatarBucket, name, u.Avatar.Body, asset.Options{ContentType: u.Avatar.ContentType}); err != nil {
			return nil, fmt.Errorf("upload avatar: %w", err)
		}
		cols["avatar_url"] = s.assets.PublicURL(AvatarBucket, name)
	}
	if len(cols) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", uid).Updates(cols)
		if res.Error != nil {
			return nil, fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
		}
	}
	if u.Password != nil {
		if err := s.auth.UpdatePassword(ctx, uid, u.Password.CurrentPassword, u.Password.NewPassword); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, uid)
}
