package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-shop-service/internal/domain"
	"github.com/spec-kit/repair-shop-service/internal/events"
	"github.com/spec-kit/repair-shop-service/internal/repository"
	apperrors "github.com/spec-kit/repair-shop-service/pkg/util/errorutil"
)

// SummaryCache caches projected users by id.
type SummaryCache interface {
	Get(ctx context.Context, id string) (*domain.UserSummary, bool)
	Set(ctx context.Context, id string, value *domain.UserSummary)
	Delete(ctx context.Context, id string)
}

// UserService implements the user resource operations.
type UserService struct {
	users      repository.UserRepository
	cache      SummaryCache
	dispatcher events.Dispatcher
	validate   *validator.Validate
	logger     *zap.Logger
	cacheGen   generation
}

// UserDependencies bundles collaborators for the user service. Cache and
// Dispatcher are optional.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Cache      SummaryCache
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// SecurityQuestionInput is one chosen security question.
type SecurityQuestionInput struct {
	QuestionText string `json:"questionText" validate:"required"`
	AnswerText   string `json:"answerText" validate:"required"`
}

// CreateUserInput describes a user creation payload.
type CreateUserInput struct {
	Email                     string                  `json:"email" validate:"required,email"`
	Password                  string                  `json:"password" validate:"required"`
	FirstName                 string                  `json:"firstName" validate:"required"`
	LastName                  string                  `json:"lastName" validate:"required"`
	PhoneNumber               string                  `json:"phoneNumber" validate:"required"`
	Address                   string                  `json:"address" validate:"required"`
	IsDisabled                *bool                   `json:"isDisabled"`
	Role                      domain.Role             `json:"role" validate:"omitempty,oneof=standard admin"`
	SelectedSecurityQuestions []SecurityQuestionInput `json:"selectedSecurityQuestions" validate:"omitempty,dive"`
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		validate:   newValidator(),
		logger:     logger,
	}
}

// CreateUser validates and persists a new user, applying the isDisabled and
// role defaults.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	input.Address = strings.TrimSpace(input.Address)

	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	user := &domain.User{
		Email:       input.Email,
		Password:    input.Password,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		PhoneNumber: input.PhoneNumber,
		Address:     input.Address,
		Role:        domain.RoleStandard,
	}
	if input.Role != "" {
		user.Role = input.Role
	}
	if input.IsDisabled != nil {
		user.IsDisabled = *input.IsDisabled
	}
	for _, q := range input.SelectedSecurityQuestions {
		user.SelectedSecurityQuestions = append(user.SelectedSecurityQuestions, domain.SecurityQuestion{
			QuestionText: q.QuestionText,
			AnswerText:   q.AnswerText,
		})
	}

	if err := s.users.Insert(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}

	s.publishEvent(ctx, events.EventUserCreated, user.ID, events.UserCreatedPayload{
		Email: user.Email,
		Role:  user.Role,
	})
	return user, nil
}

// ListUsers returns every user projected to its summary, ordered by id.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if users == nil {
		users = []domain.UserSummary{}
	}
	return users, nil
}

// GetUserByID returns the projected user.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*domain.UserSummary, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, id); ok {
			return cached, nil
		}
	}

	gen := s.cacheGen.current()
	summary, err := s.users.FindSummaryByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if s.cache != nil {
		s.cacheGen.setIfUnchanged(gen, func() { s.cache.Set(ctx, id, summary) })
	}
	return summary, nil
}

// UpdateUser merges patch onto the stored user. The patch is a permissive
// overwrite: modelled fields are type checked, unknown keys are stored as
// given, and the disabled flag only moves one way.
func (s *UserService) UpdateUser(ctx context.Context, id string, patch domain.UserPatch) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	clean, err := s.sanitizePatch(patch)
	if err != nil {
		return err
	}

	if err := s.users.Update(ctx, id, clean); err != nil {
		return mapStoreError(err)
	}
	s.invalidate(ctx, id)

	fields := make([]string, 0, len(clean))
	for k := range clean {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	s.publishEvent(ctx, events.EventUserUpdated, id, events.UserUpdatedPayload{Fields: fields})
	return nil
}

// DisableUser soft-deletes the user by setting isDisabled. Disabling an
// already disabled user succeeds.
func (s *UserService) DisableUser(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	if err := s.users.Update(ctx, id, domain.UserPatch{domain.FieldIsDisabled: true}); err != nil {
		return mapStoreError(err)
	}
	s.invalidate(ctx, id)
	s.publishEvent(ctx, events.EventUserDisabled, id, nil)
	return nil
}

func (s *UserService) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		s.cacheGen.bump()
		s.cache.Delete(ctx, id)
	}
}

// generation counts cache invalidations. A read only fills the cache when no
// write completed while it was reading, otherwise it could store a summary
// older than the one the write just dropped.
type generation struct {
	mu sync.Mutex
	n  uint64
}

func (g *generation) current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func (g *generation) bump() {
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
}

func (g *generation) setIfUnchanged(seen uint64, set func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n == seen {
		set()
	}
}

func (s *UserService) publishEvent(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if caller, ok := domain.CallerFromContext(ctx); ok {
		event.Actor = events.Actor{ID: caller.ID, Role: caller.Role}
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(eventType)),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// normalizeID validates id and returns its canonical lower-case form, which
// is the only form used as a store or cache key.
func normalizeID(id string) (string, error) {
	if !domain.ValidUserID(id) {
		return "", apperrors.NewValidationError("invalid user id")
	}
	return strings.ToLower(id), nil
}

func (s *UserService) sanitizePatch(patch domain.UserPatch) (domain.UserPatch, error) {
	clean := make(domain.UserPatch, len(patch))
	for key, val := range patch {
		switch {
		case key == domain.FieldID || key == domain.FieldMongoID:
			// identifiers are immutable
		case key == "" || strings.HasPrefix(key, "$"):
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid field name %q", key))
		case key == domain.FieldRole:
			role, ok := val.(string)
			if !ok || !domain.Role(role).Valid() {
				return nil, apperrors.NewValidationError("role must be one of [standard admin]")
			}
			clean[key] = role
		case key == domain.FieldIsDisabled:
			disabled, ok := val.(bool)
			if !ok {
				return nil, apperrors.NewValidationError("isDisabled must be a boolean")
			}
			// a disabled user is never re-enabled
			if disabled {
				clean[key] = true
			}
		case key == domain.FieldEmail:
			email, ok := val.(string)
			if !ok || s.validate.Var(email, "required,email") != nil {
				return nil, apperrors.NewValidationError("email must be a valid email address")
			}
			clean[key] = email
		case stringFields[key]:
			str, ok := val.(string)
			if !ok {
				return nil, apperrors.NewValidationError(key + " must be a string")
			}
			clean[key] = str
		case key == domain.FieldSelectedSecurityQuestions:
			questions, err := securityQuestions(val)
			if err != nil {
				return nil, err
			}
			clean[key] = questions
		default:
			clean[key] = val
		}
	}
	return clean, nil
}

var stringFields = map[string]bool{
	domain.FieldPassword:    true,
	domain.FieldFirstName:   true,
	domain.FieldLastName:    true,
	domain.FieldPhoneNumber: true,
	domain.FieldAddress:     true,
}

func securityQuestions(val any) ([]domain.SecurityQuestion, error) {
	invalid := apperrors.NewValidationError("selectedSecurityQuestions must be a list of {questionText, answerText} strings")
	switch v := val.(type) {
	case []domain.SecurityQuestion:
		return v, nil
	case []any:
		out := make([]domain.SecurityQuestion, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, invalid
			}
			question, qok := obj["questionText"].(string)
			answer, aok := obj["answerText"].(string)
			if !qok || !aok {
				return nil, invalid
			}
			out = append(out, domain.SecurityQuestion{QuestionText: question, AnswerText: answer})
		}
		return out, nil
	default:
		return nil, invalid
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("user")
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewValidationError(repository.ErrDuplicate.Error())
	default:
		return apperrors.NewInternalError(err)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperrors.NewValidationError(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
