package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/requestdata"
	"github.com/kertaswork/plantrack-backend/internal/types"
	"github.com/kertaswork/plantrack-backend/internal/utils"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// TokenPair is one issued session.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type RegisterInput struct {
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	DepartmentID uuid.UUID `json:"department_id"`
}

type accessClaims struct {
	Role         string `json:"role"`
	DepartmentID string `json:"department_id"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*types.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	// SetContextFromToken validates an access token and attaches the
	// resolved identity, including the derived capability set, to the
	// context. The single place roles become capabilities at runtime.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	userRepo  repos.UserRepo
	tokenRepo repos.UserTokenRepo
	secret    []byte
	accessTTL time.Duration
	log       *logger.Logger
}

func NewAuthService(userRepo repos.UserRepo, tokenRepo repos.UserTokenRepo, baseLog *logger.Logger) AuthService {
	secret := utils.GetEnv("JWT_SECRET", "", baseLog)
	ttlMinutes := utils.GetEnvAsInt("JWT_ACCESS_TTL_MINUTES", 60, baseLog)
	return &authService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		secret:    []byte(secret),
		accessTTL: time.Duration(ttlMinutes) * time.Minute,
		log:       baseLog.With("service", "AuthService"),
	}
}

func validRole(role string) bool {
	switch role {
	case types.RolePIC, types.RoleLeader, types.RoleAdmin, types.RoleExecutive, types.RoleGrader:
		return true
	}
	return false
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*types.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, plan.NewValidationError("email", "a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, nil, plan.NewLengthError("password", 8, len(in.Password))
	}
	if !validRole(in.Role) {
		return nil, nil, plan.NewValidationError("role", fmt.Sprintf("unknown role %q", in.Role))
	}

	exists, err := s.userRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, nil, wrapRemote("check email", err)
	}
	if exists {
		return nil, nil, &plan.ConflictError{Reason: "email is already registered"}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	user := &types.User{
		ID:           uuid.New(),
		Email:        email,
		Password:     string(hashed),
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		DepartmentID: in.DepartmentID,
	}
	if _, err := s.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
		return nil, nil, wrapRemote("create user", err)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("User registered", "user_id", user.ID.String(), "role", user.Role)
	return user, pair, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := s.userRepo.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, nil, wrapRemote("load user", err)
	}
	if len(users) == 0 {
		// Burn a compare anyway so the timing does not reveal whether the
		// email exists.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva"), []byte(password))
		return nil, nil, ErrInvalidCredentials
	}
	user := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("User logged in", "user_id", user.ID.String())
	return user, pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	row, err := s.tokenRepo.GetByRefreshToken(ctx, nil, refreshToken)
	if err != nil {
		return nil, wrapRemote("load refresh token", err)
	}
	if row == nil || time.Now().After(row.ExpiresAt) {
		return nil, ErrInvalidCredentials
	}
	users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{row.UserID})
	if err != nil {
		return nil, wrapRemote("load user", err)
	}
	if len(users) == 0 {
		return nil, ErrInvalidCredentials
	}
	// Rotation: the old refresh token dies with the re-issue.
	if err := s.tokenRepo.DeleteByUserID(ctx, nil, row.UserID); err != nil {
		return nil, wrapRemote("rotate refresh token", err)
	}
	return s.issueTokens(ctx, users[0])
}

func (s *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.tokenRepo.DeleteByUserID(ctx, nil, userID); err != nil {
		return wrapRemote("delete tokens", err)
	}
	return nil
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ctx, &plan.PermissionError{Capability: "authenticate", Reason: "invalid or expired token"}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, &plan.PermissionError{Capability: "authenticate", Reason: "malformed token subject"}
	}
	departmentID, _ := uuid.Parse(claims.DepartmentID)

	rd := &requestdata.RequestData{
		TokenString:  tokenString,
		UserID:       userID,
		DepartmentID: departmentID,
		Role:         claims.Role,
		Capabilities: plan.CapabilitiesForRole(claims.Role),
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (s *authService) issueTokens(ctx context.Context, user *types.User) (*TokenPair, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)
	claims := accessClaims{
		Role:         user.Role,
		DepartmentID: user.DepartmentID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := uuid.NewString() + uuid.NewString()
	row := &types.UserToken{
		ID:           uuid.New(),
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(30 * 24 * time.Hour),
	}
	if _, err := s.tokenRepo.Create(ctx, nil, []*types.UserToken{row}); err != nil {
		return nil, wrapRemote("store refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}
