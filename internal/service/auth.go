package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/manish-shre/KKMS/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// RenewWindow is how close to expiry a token must be before the middleware
// hands out a fresh one.
const RenewWindow = 24 * time.Hour

// Claims is the JWT payload.
type Claims struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type AuthService struct {
	db      *gorm.DB
	secret  []byte
	ttl     time.Duration
	revoked RevocationList
}

func NewAuthService(db *gorm.DB, secret string, ttl time.Duration, revoked RevocationList) *AuthService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	return &AuthService{db: db, secret: []byte(secret), ttl: ttl, revoked: revoked}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	var a model.Account
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.user(ctx, &a)
}

// User returns the signed-in user with profile fields.
func (s *AuthService) User(ctx context.Context, uid string) (*model.User, error) {
	var a model.Account
	if err := s.db.WithContext(ctx).Where("id = ?", uid).First(&a).Error; err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return s.user(ctx, &a)
}

func (s *AuthService) user(ctx context.Context, a *model.Account) (*model.User, error) {
	u := &model.User{ID: a.ID, Email: a.Email, FullName: a.Email, Role: model.RoleAdmin}
	var p model.Profile
	err := s.db.WithContext(ctx).Where("id = ?", a.ID).First(&p).Error
	switch {
	case err == nil:
		u.FullName, u.AvatarURL, u.Role = p.FullName, p.AvatarURL, p.Role
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return u, nil
}

// Issue signs a token for uid valid for the configured lifetime.
func (s *AuthService) Issue(uid, name string) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UID:  uid,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}).SignedString(s.secret)
}

// Parse validates signature, expiry and revocation.
func (s *AuthService) Parse(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UID == "" {
		return nil, ErrInvalidToken
	}
	revoked, err := s.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignOut revokes the token until it would have expired anyway.
func (s *AuthService) SignOut(ctx context.Context, c *Claims) error {
	until := time.Now().Add(s.ttl)
	if c.ExpiresAt != nil {
		until = c.ExpiresAt.Time
	}
	return s.revoked.Revoke(ctx, c.ID, until)
}

func (s *AuthService) UpdatePassword(ctx context.Context, uid, current, next string) error {
	var a model.Account
	if err := s.db.WithContext(ctx).Where("id = ?", uid).First(&a).Error; err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(current)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", uid).
		Update("password", string(hash)).Error
}

// CreateAdmin adds an account and its admin profile in one transaction.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, fullName string) (*model.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &model.Account{Email: normalizeEmail(email), Password: string(hash)}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		p := &model.Profile{ID: a.ID, FullName: fullName, Role: model.RoleAdmin}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
