// Package service holds the authentication and engagement business logic.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"chirp/internal/middleware"
	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/repository"
)

// ProfileDefaults are assigned to every new account.
type ProfileDefaults struct {
	AvatarPath string
	BannerPath string
}

type SignupInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// AuthService owns signup, credential login and the session lifecycle.
type AuthService struct {
	users    repository.UserRepository
	tokens   *TokenService
	hasher   PasswordHasher
	defaults ProfileDefaults

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	users repository.UserRepository,
	tokens *TokenService,
	hasher PasswordHasher,
	defaults ProfileDefaults,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		defaults: defaults,
	}
}

// Tokens exposes the token service backing s.
func (s *AuthService) Tokens() *TokenService {
	return s.tokens
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "AuthService", "Signup")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}

	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		observability.AuthAttempts.WithLabelValues("signup", "duplicate").Inc()
		return nil, models.NewDuplicateIdentityError("username already taken")
	}
	existing, err = s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		observability.AuthAttempts.WithLabelValues("signup", "duplicate").Inc()
		return nil, models.NewDuplicateIdentityError("email already registered")
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Username:   in.Username,
		Email:      in.Email,
		Password:   hashed,
		AvatarPath: s.defaults.AvatarPath,
		BannerPath: s.defaults.BannerPath,
	}
	// The unique indexes catch a concurrent signup that passed the pre-check.
	if err := s.users.Create(ctx, user); err != nil {
		if models.IsCode(err, models.CodeDuplicateIdentity) {
			observability.AuthAttempts.WithLabelValues("signup", "duplicate").Inc()
		}
		return nil, err
	}

	observability.AuthAttempts.WithLabelValues("signup", "success").Inc()
	middleware.Logger.InfoContext(ctx, "user signed up", slog.String("username", user.Username))
	return user, nil
}

// Login checks credentials and issues a token pair. Unknown usernames and
// wrong passwords are indistinguishable, including in timing.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.AuthResponse, error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "AuthService", "Login")
	defer span.End()

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}

	hash := s.fallbackHash()
	if user != nil {
		hash = user.Password
	}
	if !s.hasher.Compare(hash, password) || user == nil {
		observability.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, models.NewUnauthenticatedError()
	}

	resp, err := s.issuePair(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	observability.AuthAttempts.WithLabelValues("login", "success").Inc()
	return resp, nil
}

// Logout revokes refreshToken. Repeating it is harmless.
func (s *AuthService) Logout(ctx context.Context, refreshToken, username string) error {
	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "user logged out", slog.String("username", username))
	return nil
}

// RefreshToken rotates refreshToken and issues a new access token for the
// username bound at issuance. A non-empty username that differs from the
// bound one is rejected.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken, username string) (*models.AuthResponse, error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "AuthService", "RefreshToken")
	defer span.End()

	current, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if username != "" && username != current.Username {
		middleware.Logger.WarnContext(ctx, "refresh token presented for another user",
			slog.String("bound", current.Username),
			slog.String("claimed", username))
		return nil, models.NewInvalidTokenError()
	}

	next, err := s.tokens.rotate(ctx, current)
	if err != nil {
		return nil, err
	}
	access, expiresAt, err := s.tokens.IssueAccessToken(next.Username)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  access,
		RefreshToken: next.Token,
		Username:     next.Username,
		ExpiresAt:    expiresAt,
	}, nil
}

// ResolveCurrentUser maps a bearer access token to its user.
func (s *AuthService) ResolveCurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	subject, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	return s.users.GetProfile(ctx, subject)
}

func (s *AuthService) FindAllUsernames(ctx context.Context) ([]string, error) {
	return s.users.ListUsernames(ctx)
}

func (s *AuthService) issuePair(ctx context.Context, username string) (*models.AuthResponse, error) {
	access, expiresAt, err := s.tokens.IssueAccessToken(username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, username)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		Username:     username,
		ExpiresAt:    expiresAt,
	}, nil
}

// fallbackHash is compared against when the username is unknown so that
// login costs the same whether or not the account exists.
func (s *AuthService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("chirp-login-timing-equalizer")
		if err != nil {
			middleware.Logger.Error("failed to prepare fallback hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
