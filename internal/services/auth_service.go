package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/config"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/util"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
)

// Claims carried in the session token.
type Claims struct {
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, cfg config.Config) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{db: db, secret: []byte(cfg.JWTSecret), ttl: ttl, now: time.Now}
}

// Register creates a staff account. The first account becomes admin; later
// ones default to sales agent unless a role is given.
func (s *AuthService) Register(email, password, name string, role models.Role) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var existing int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	var total int64
	if err := s.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, err
	}
	switch {
	case total == 0:
		role = models.RoleAdmin
	case role == "":
		role = models.RoleSales
	}

	u := &models.User{Email: email, Name: name, Role: role, Enabled: true}
	if err := u.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and returns a signed token. Repeated failures
// lock the account for a while.
func (s *AuthService) Login(email, password string) (string, error) {
	var u models.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error; err != nil {
		return "", ErrInvalidCredentials
	}
	now := s.now()
	if u.LockedUntil != nil && u.LockedUntil.After(now) {
		return "", ErrAccountLocked
	}
	if !u.Enabled {
		return "", ErrAccountDisabled
	}

	if !u.CheckPassword(password) {
		u.FailedLoginAttempts++
		updates := map[string]interface{}{"failed_login_attempts": u.FailedLoginAttempts}
		if u.FailedLoginAttempts >= maxFailedLogins {
			until := now.Add(lockoutDuration)
			updates["locked_until"] = &until
			logger.Log().WithField("email", util.MaskEmail(u.Email)).Warn("account locked after repeated failed logins")
		}
		s.db.Model(&u).Updates(updates)
		return "", ErrInvalidCredentials
	}

	s.db.Model(&u).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login":            &now,
	})
	return s.GenerateToken(&u)
}

func (s *AuthService) GenerateToken(u *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "crane-crm",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses an HS256 token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) GetUserByID(id string) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *AuthService) ChangePassword(userID, oldPassword, newPassword string) error {
	u, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if !u.CheckPassword(oldPassword) {
		return ErrInvalidCredentials
	}
	if err := u.SetPassword(newPassword); err != nil {
		return err
	}
	return s.db.Model(u).Update("password_hash", u.PasswordHash).Error
}

// UpdateProfile sets the user's name and phone. Ten-digit numbers get the
// +91 prefix.
func (s *AuthService) UpdateProfile(userID, name, phone string) (*models.User, error) {
	u, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if phone != "" {
		phone = NormalizePhone(phone)
	}
	if err := s.db.Model(u).Updates(map[string]interface{}{"name": name, "phone": phone}).Error; err != nil {
		return nil, err
	}
	u.Name, u.Phone = name, phone
	return u, nil
}
