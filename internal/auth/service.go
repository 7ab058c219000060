package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// Mail templates understood by the mail job.
const (
	TemplateForgotPassword = "forgot-password"
	TemplateActivateUser   = "activate-user"
)

// Notifier hands outbound mail to the delivery pipeline.
type Notifier interface {
	EnqueueSendEmail(ctx context.Context, to, subject, template string, data map[string]string) error
}

// RoleLookup finds reserved roles by name.
type RoleLookup interface {
	FindRoleByName(ctx context.Context, name string) (rbac.Role, error)
}

// ServiceConfig tunes account flows.
type ServiceConfig struct {
	// ActivationEmail receives activation notices. When empty, registrations
	// are activated immediately.
	ActivationEmail string
	ResetCodeTTL    time.Duration
	HashCost        int
	Now             func() time.Time
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	roles    RoleLookup
	resolver *rbac.Resolver
	codec    *TokenCodec
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger
	cfg      ServiceConfig
}

// NewService constructs a new Service. notifier may be nil.
func NewService(repo Repository, roles RoleLookup, resolver *rbac.Resolver, codec *TokenCodec, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.ResetCodeTTL <= 0 {
		cfg.ResetCodeTTL = 24 * time.Hour
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		roles:    roles,
		resolver: resolver,
		codec:    codec,
		notifier: notifier,
		validate: shared.NewValidator(),
		logger:   logger,
		cfg:      cfg,
	}
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// LoginResult is returned by successful authentication.
type LoginResult struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires"`
}

// Login authenticates credentials and issues a session token.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return LoginResult{}, err
	}

	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("auth: login %s: %w", in.Email, shared.ErrNotFound)
		}
		return LoginResult{}, err
	}
	if !user.IsActivated {
		return LoginResult{}, shared.ErrAccountDeactivated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	return s.issue(ctx, user, in.Remember)
}

// ForgotPasswordInput requests a reset code. URL may contain {code} and
// {email} placeholders.
type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
	URL   string `json:"url" validate:"required"`
}

// ForgotPasswordResult describes the issued reset code.
type ForgotPasswordResult struct {
	Code      string
	ExpiresAt time.Time
	URL       string
}

// ForgotPassword stores a single-use reset code on the principal and mails
// the reset link.
func (s *Service) ForgotPassword(ctx context.Context, in ForgotPasswordInput) (ForgotPasswordResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.URL = strings.TrimSpace(in.URL)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return ForgotPasswordResult{}, err
	}
	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return ForgotPasswordResult{}, err
	}

	code := newResetCode()
	expires := s.cfg.Now().Add(s.cfg.ResetCodeTTL).UTC()
	user.ResetCode = &code
	user.ResetExpires = &expires
	if _, err := s.repo.Update(ctx, user); err != nil {
		return ForgotPasswordResult{}, err
	}

	link := strings.NewReplacer("{code}", code, "{email}", url.QueryEscape(in.Email)).Replace(in.URL)
	result := ForgotPasswordResult{Code: code, ExpiresAt: expires, URL: link}
	s.notify(ctx, user.Email, fmt.Sprintf("Hello %s, forgot your password?", user.Name), TemplateForgotPassword, map[string]string{
		"name":    user.Name,
		"email":   user.Email,
		"url":     link,
		"expires": expires.Format(time.RFC3339),
	})
	return result, nil
}

// ResetPasswordInput redeems a reset code.
type ResetPasswordInput struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetPassword replaces the password when code matches and has not expired.
// The code is cleared on success.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) (User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	in.Password = strings.TrimSpace(in.Password)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return User{}, err
	}
	if user.ResetCode == nil || subtle.ConstantTimeCompare([]byte(*user.ResetCode), []byte(in.Code)) != 1 {
		return User{}, shared.ErrInvalidResetCode
	}
	if user.ResetExpires == nil || user.ResetExpires.Before(s.cfg.Now()) {
		return User{}, shared.ErrResetCodeExpired
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}
	user.PasswordHash = hash
	user.ResetCode = nil
	user.ResetExpires = nil
	return s.repo.Update(ctx, user)
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Name                 string     `json:"name" validate:"required"`
	Surname              string     `json:"surname" validate:"required"`
	Document             string     `json:"document"`
	BirthDate            *time.Time `json:"birthDate"`
	Email                string     `json:"email" validate:"required,email"`
	Password             string     `json:"password" validate:"required"`
	PasswordConfirmation string     `json:"passwordConfirmation" validate:"required,eqfield=Password"`
	Phone                string     `json:"phone"`
	Mobile               string     `json:"mobile"`
}

// Register creates an account holding the common role. When an activation
// address is configured the account waits for review and a notice is mailed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	in.PasswordConfirmation = strings.TrimSpace(in.PasswordConfirmation)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	if n, err := s.repo.CountByEmail(ctx, in.Email); err != nil {
		return User{}, err
	} else if n > 0 {
		return User{}, fmt.Errorf("auth: email already in use: %w", shared.ErrDuplicate)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}

	user := User{
		Name:         in.Name,
		Surname:      in.Surname,
		Document:     digitsOnly(in.Document),
		BirthDate:    in.BirthDate,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		Mobile:       strings.TrimSpace(in.Mobile),
		IsActivated:  s.cfg.ActivationEmail == "",
		RoleIDs:      []string{},
		Claims:       []rbac.Claim{},
	}
	if s.roles != nil {
		role, err := s.roles.FindRoleByName(ctx, rbac.RoleCommon)
		switch {
		case err == nil:
			user.RoleIDs = append(user.RoleIDs, role.ID)
		case errors.Is(err, shared.ErrNotFound):
			s.logger.Warn("register: common role missing")
		default:
			return User{}, err
		}
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return User{}, err
	}
	if s.cfg.ActivationEmail != "" {
		s.notify(ctx, s.cfg.ActivationEmail, fmt.Sprintf("User %s is pending activation", created.Name), TemplateActivateUser, map[string]string{
			"id":      created.ID,
			"name":    created.Name,
			"surname": created.Surname,
			"email":   created.Email,
		})
	}
	return created, nil
}

// ProfileInput updates the caller's own account. An empty password keeps the
// current one.
type ProfileInput struct {
	Name      string     `json:"name" validate:"required"`
	Surname   string     `json:"surname" validate:"required"`
	Document  string     `json:"document"`
	BirthDate *time.Time `json:"birthDate"`
	Email     string     `json:"email" validate:"required,email"`
	Password  string     `json:"password"`
	Phone     string     `json:"phone"`
	Mobile    string     `json:"mobile"`
}

// UpdateProfile edits the authenticated caller's account.
func (s *Service) UpdateProfile(ctx context.Context, rc *RequestContext, in ProfileInput) (User, error) {
	if err := rc.IsAuthenticated(); err != nil {
		return User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	user, err := s.repo.FindByID(ctx, rc.CurrentUserID())
	if err != nil {
		return User{}, err
	}
	if !strings.EqualFold(user.Email, in.Email) {
		n, err := s.repo.CountByEmail(ctx, in.Email)
		if err != nil {
			return User{}, err
		}
		if n > 0 {
			return User{}, fmt.Errorf("auth: email already in use: %w", shared.ErrDuplicate)
		}
	}
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return User{}, err
		}
		user.PasswordHash = hash
	}
	user.Name = in.Name
	user.Surname = in.Surname
	user.Document = digitsOnly(in.Document)
	user.BirthDate = in.BirthDate
	user.Email = in.Email
	user.Phone = strings.TrimSpace(in.Phone)
	user.Mobile = strings.TrimSpace(in.Mobile)
	return s.repo.Update(ctx, user)
}

// RefreshToken re-resolves the caller's permissions and issues a new token.
func (s *Service) RefreshToken(ctx context.Context, rc *RequestContext, remember bool) (LoginResult, error) {
	if err := rc.IsAuthenticated(); err != nil {
		return LoginResult{}, err
	}
	user, err := s.repo.FindByID(ctx, rc.CurrentUserID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("%w: principal no longer exists", shared.ErrUnauthenticated)
		}
		return LoginResult{}, err
	}
	if !user.IsActivated {
		return LoginResult{}, shared.ErrAccountDeactivated
	}
	return s.issue(ctx, user, remember)
}

// Me returns the caller's current account record.
func (s *Service) Me(ctx context.Context, rc *RequestContext) (User, error) {
	return rc.GetUser(ctx)
}

// HashPassword hashes a plain password with the configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	return s.hash(strings.TrimSpace(password))
}

func (s *Service) issue(ctx context.Context, user User, remember bool) (LoginResult, error) {
	res, err := s.resolver.Resolve(ctx, user.Grantee())
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: resolve claims: %w", err)
	}
	token, expires, err := s.codec.Issue(user, res, remember)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user, Token: token, ExpiresAt: expires}, nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.HashCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) notify(ctx context.Context, to, subject, template string, data map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.EnqueueSendEmail(ctx, to, subject, template, data); err != nil {
		s.logger.Error("enqueue mail", slog.String("template", template), slog.Any("error", err))
	}
}

func newResetCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
