// Package users implements account registration, login and profile management
// on top of the credential primitives in package auth.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"usersvc/internal/apperror"
	"usersvc/internal/auth"
	"usersvc/internal/limiter"
	"usersvc/internal/metrics"
)

// invalidCredentialsMessage is shared by unknown-email and wrong-password
// failures so the response does not reveal which accounts exist.
const invalidCredentialsMessage = "invalid email or password"

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, hash string) (bool, error)
}

// TokenIssuer issues session tokens
type TokenIssuer interface {
	Issue(uid, email string) (string, error)
	TTL() time.Duration
}

// Recorder receives outcome metrics. *metrics.AuthMetrics implements it.
type Recorder interface {
	ObserveRegistration(outcome string)
	ObserveLogin(outcome string)
	ObserveHash(d time.Duration)
}

// Service defines the account operations
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (string, error)
	List(ctx context.Context) ([]User, error)
	GetProfile(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*User, error)
	DeleteProfile(ctx context.Context, id string) error
}

// Deps are the collaborators of the service. Limiter and Metrics are optional.
type Deps struct {
	Store   Store
	Hasher  PasswordHasher
	Tokens  TokenIssuer
	Limiter limiter.Limiter
	Metrics Recorder
}

type service struct {
	store    Store
	hasher   PasswordHasher
	tokens   TokenIssuer
	limiter  limiter.Limiter
	metrics  Recorder
	validate *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates the account service
func NewService(deps Deps) Service {
	lim := deps.Limiter
	if lim == nil {
		lim = limiter.Noop{}
	}
	rec := deps.Metrics
	if rec == nil {
		rec = (*metrics.AuthMetrics)(nil)
	}

	return &service{
		store:    deps.Store,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		limiter:  lim,
		metrics:  rec,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// NormalizeEmail trims and lowercases an email address. Emails are stored and
// looked up in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates the request, hashes the password and stores a new user
func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)

	if err := s.validateStruct(req); err != nil {
		s.metrics.ObserveRegistration(metrics.OutcomeInvalid)
		return nil, err
	}

	if !auth.ValidatePassword(req.Password) {
		s.metrics.ObserveRegistration(metrics.OutcomeInvalid)
		return nil, apperror.Validation("weak_password", auth.PasswordPolicyMessage)
	}

	if _, err := s.store.GetByEmail(ctx, req.Email); err == nil {
		s.metrics.ObserveRegistration(metrics.OutcomeConflict)
		return nil, apperror.Conflict("email_taken", "email already registered", ErrEmailTaken)
	} else if !errors.Is(err, ErrNotFound) {
		s.metrics.ObserveRegistration(metrics.OutcomeError)
		return nil, apperror.Unexpected(fmt.Errorf("check existing email: %w", err))
	}

	hash, err := s.hash(ctx, req.Password)
	if err != nil {
		s.metrics.ObserveRegistration(metrics.OutcomeError)
		return nil, apperror.Unexpected(fmt.Errorf("hash password: %w", err))
	}

	user, err := s.store.Create(ctx, &User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Age:          *req.Age,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.metrics.ObserveRegistration(metrics.OutcomeConflict)
			return nil, apperror.Conflict("email_taken", "email already registered", err)
		}
		s.metrics.ObserveRegistration(metrics.OutcomeError)
		return nil, apperror.Unexpected(fmt.Errorf("create user: %w", err))
	}

	s.metrics.ObserveRegistration(metrics.OutcomeSuccess)
	slog.Info("Registered user", "user_id", user.ID)

	return user, nil
}

// Login verifies the credentials and issues a session token
func (s *service) Login(ctx context.Context, req LoginRequest) (string, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		s.metrics.ObserveLogin(metrics.OutcomeInvalid)
		return "", apperror.Validation("missing_fields", "email and password are required")
	}

	allowed, err := s.limiter.Allow(ctx, email)
	if err != nil {
		// limiter outages must not lock everyone out
		slog.Warn("Login limiter unavailable", "error", err.Error())
		allowed = true
	}
	if !allowed {
		s.metrics.ObserveLogin(metrics.OutcomeRateLimited)
		return "", apperror.RateLimited("too many failed login attempts, try again later")
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.metrics.ObserveLogin(metrics.OutcomeError)
			return "", apperror.Unexpected(fmt.Errorf("lookup user: %w", err))
		}
		// equalise timing with the known-email path
		s.burnVerify(ctx, req.Password)
		s.recordFailure(ctx, email)
		return "", apperror.Authentication(invalidCredentialsMessage, err)
	}

	start := time.Now()
	ok, err := s.hasher.Verify(ctx, req.Password, user.PasswordHash)
	s.metrics.ObserveHash(time.Since(start))
	if err != nil {
		s.metrics.ObserveLogin(metrics.OutcomeError)
		return "", apperror.Unexpected(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		s.recordFailure(ctx, email)
		return "", apperror.Authentication(invalidCredentialsMessage, nil)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.metrics.ObserveLogin(metrics.OutcomeError)
		return "", apperror.Unexpected(fmt.Errorf("issue token: %w", err))
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		slog.Warn("Failed to reset login attempts", "error", err.Error())
	}

	s.metrics.ObserveLogin(metrics.OutcomeSuccess)
	return token, nil
}

// List returns every user
func (s *service) List(ctx context.Context) ([]User, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("list users: %w", err))
	}
	return list, nil
}

// GetProfile returns the user with the given id
func (s *service) GetProfile(ctx context.Context, id string) (*User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "get user")
	}
	return user, nil
}

// UpdateProfile applies a partial update. A new password must satisfy the
// policy and is rehashed; the email cannot be changed.
func (s *service) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*User, error) {
	if req.Email != nil {
		return nil, apperror.Validation("email_immutable", "email cannot be changed")
	}
	var empty []string
	if req.FirstName != nil {
		v := strings.TrimSpace(*req.FirstName)
		req.FirstName = &v
		if v == "" {
			empty = append(empty, "firstName must not be empty")
		}
	}
	if req.LastName != nil {
		v := strings.TrimSpace(*req.LastName)
		req.LastName = &v
		if v == "" {
			empty = append(empty, "lastName must not be empty")
		}
	}
	if len(empty) > 0 {
		return nil, apperror.Validation("invalid_fields", strings.Join(empty, "; "))
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	upd := Update{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
	}

	if req.Password != nil {
		if !auth.ValidatePassword(*req.Password) {
			return nil, apperror.Validation("weak_password", auth.PasswordPolicyMessage)
		}
		hash, err := s.hash(ctx, *req.Password)
		if err != nil {
			return nil, apperror.Unexpected(fmt.Errorf("hash password: %w", err))
		}
		upd.PasswordHash = &hash
	}

	user, err := s.store.Update(ctx, id, upd)
	if err != nil {
		return nil, notFoundOr(err, "update user")
	}

	slog.Info("Updated user", "user_id", id)
	return user, nil
}

// DeleteProfile removes the user with the given id
func (s *service) DeleteProfile(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return notFoundOr(err, "delete user")
	}

	slog.Info("Deleted user", "user_id", id)
	return nil
}

func (s *service) hash(ctx context.Context, password string) (string, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveHash(time.Since(start)) }()
	return s.hasher.Hash(ctx, password)
}

func (s *service) recordFailure(ctx context.Context, email string) {
	s.metrics.ObserveLogin(metrics.OutcomeBadCreds)
	if err := s.limiter.RecordFailure(ctx, email); err != nil {
		slog.Warn("Failed to record login attempt", "error", err.Error())
	}
}

// burnVerify runs a verification against a throwaway hash.
func (s *service) burnVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(context.Background(), "Dummy-password-1!")
		if err != nil {
			slog.Warn("Failed to prepare dummy hash", "error", err.Error())
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
	}
}

func (s *service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Unexpected(err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, describeFieldError(fe))
	}

	if len(missing) > 0 {
		return apperror.Validation("missing_fields", "missing required fields: "+strings.Join(missing, ", "))
	}
	return apperror.Validation("invalid_fields", strings.Join(invalid, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "gte", "lte":
		return fmt.Sprintf("%s must be between 0 and 150", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, ErrNotFound) {
		return apperror.NotFound("user_not_found", "user not found", err)
	}
	return apperror.Unexpected(fmt.Errorf("%s: %w", op, err))
}
