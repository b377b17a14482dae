package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vidyavichar/models"
	"vidyavichar/store"
)

const (
	tokenIssuer       = "vidyavichar"
	minPasswordLength = 6
)

type AuthService struct {
	users    store.UserStore
	sessions SessionStore
	secret   []byte
	ttl      time.Duration
}

func NewAuthService(users store.UserStore, sessions SessionStore, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
	}
}

// Claims is the JWT payload. Subject carries the user id and ID the session id.
type Claims struct {
	Name string      `json:"name"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := models.Role(req.Role)
	if name == "" || email == "" {
		return nil, invalidArgument("Name and email are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalidArgument("Password must be at least 6 characters")
	}
	if !role.Valid() {
		return nil, invalidArgument("Role must be one of student, teacher or TA")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, internal(err)
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, conflict("User already exists with this email")
		}
		return nil, internal(err)
	}

	log.Printf("[AUTH] registered %s user %s", user.Role, user.ID)
	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, internal(err)
	}
	if err := user.CheckPassword(req.Password); err != nil {
		return nil, unauthorized("Invalid credentials")
	}
	return s.issue(ctx, user)
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResponse, error) {
	now := time.Now()
	session := &Session{ID: uuid.NewString(), UserID: user.ID, CreatedAt: now.UTC()}
	if err := s.sessions.Save(ctx, session, s.ttl); err != nil {
		return nil, internal(err)
	}

	claims := &Claims{
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, internal(err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// Resolve turns a bearer token into the principal it was issued to. The
// token must verify and its session must still be live.
func (s *AuthService) Resolve(ctx context.Context, token string) (models.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil || !parsed.Valid {
		return models.Principal{}, unauthorized("Token is not valid")
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if errors.Is(err, errSessionNotFound) {
		return models.Principal{}, unauthorized("Session has expired")
	}
	if err != nil {
		return models.Principal{}, internal(err)
	}
	if session.UserID != claims.Subject {
		return models.Principal{}, unauthorized("Token is not valid")
	}

	return models.Principal{
		ID:        claims.Subject,
		Name:      claims.Name,
		Role:      claims.Role,
		SessionID: claims.ID,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, p models.Principal) error {
	if err := s.sessions.Delete(ctx, p.SessionID); err != nil {
		return internal(err)
	}
	log.Printf("[AUTH] user %s logged out", p.ID)
	return nil
}

func (s *AuthService) Profile(ctx context.Context, p models.Principal) (*models.User, error) {
	user, err := s.users.GetUser(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, internal(err)
	}
	return user, nil
}
