package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/repair-shop-service/internal/domain"
)

type memoryRecord struct {
	user  domain.User
	extra map[string]any
}

var _ UserRepository = (*MemoryUserRepository)(nil)

// MemoryUserRepository keeps users in process memory. It is used when no
// external store is configured and as the store in tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*memoryRecord
}

// NewMemoryUserRepository returns an empty in-memory store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*memoryRecord)}
}

func (r *MemoryUserRepository) Insert(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !user.IsDisabled && r.activeEmailTaken(user.Email, "") {
		return ErrDuplicate
	}

	id := domain.NewUserID()
	stored := *user
	stored.ID = id
	stored.SelectedSecurityQuestions = append([]domain.SecurityQuestion(nil), user.SelectedSecurityQuestions...)
	r.users[id] = &memoryRecord{user: stored, extra: map[string]any{}}
	user.ID = id
	return nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]domain.UserSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.UserSummary, 0, len(r.users))
	for _, rec := range r.users {
		out = append(out, rec.user.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryUserRepository) FindSummaryByID(ctx context.Context, id string) (*domain.UserSummary, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := user.Summary()
	return &summary, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.users[strings.ToLower(id)]
	if !ok {
		return nil, ErrNotFound
	}
	user := rec.user
	user.SelectedSecurityQuestions = append([]domain.SecurityQuestion(nil), rec.user.SelectedSecurityQuestions...)
	return &user, nil
}

// Extra returns the fields stored on a user that are outside the user model.
func (r *MemoryUserRepository) Extra(id string) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.users[strings.ToLower(id)]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(rec.extra))
	for k, v := range rec.extra {
		out[k] = v
	}
	return out
}

func (r *MemoryUserRepository) Update(_ context.Context, id string, patch domain.UserPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id = strings.ToLower(id)
	rec, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}

	updated := rec.user
	extra := make(map[string]any, len(rec.extra))
	for k, v := range rec.extra {
		extra[k] = v
	}
	for key, val := range patch {
		if err := applyField(&updated, extra, key, val); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
	}
	if !updated.IsDisabled && r.activeEmailTaken(updated.Email, id) {
		return ErrDuplicate
	}

	rec.user = updated
	rec.extra = extra
	return nil
}

func (r *MemoryUserRepository) activeEmailTaken(email, exceptID string) bool {
	for id, rec := range r.users {
		if id != exceptID && !rec.user.IsDisabled && rec.user.Email == email {
			return true
		}
	}
	return false
}

func applyField(user *domain.User, extra map[string]any, key string, val any) error {
	switch key {
	case domain.FieldEmail:
		return assignString(&user.Email, key, val)
	case domain.FieldPassword:
		return assignString(&user.Password, key, val)
	case domain.FieldFirstName:
		return assignString(&user.FirstName, key, val)
	case domain.FieldLastName:
		return assignString(&user.LastName, key, val)
	case domain.FieldPhoneNumber:
		return assignString(&user.PhoneNumber, key, val)
	case domain.FieldAddress:
		return assignString(&user.Address, key, val)
	case domain.FieldRole:
		var role string
		if err := assignString(&role, key, val); err != nil {
			return err
		}
		user.Role = domain.Role(role)
	case domain.FieldIsDisabled:
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("field %s: expected bool, got %T", key, val)
		}
		user.IsDisabled = b
	case domain.FieldSelectedSecurityQuestions:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		var questions []domain.SecurityQuestion
		if err := json.Unmarshal(raw, &questions); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		user.SelectedSecurityQuestions = questions
	default:
		extra[key] = val
	}
	return nil
}

func assignString(dst *string, key string, val any) error {
	s, ok := val.(string)
	if !ok {
		return fmt.Errorf("field %s: expected string, got %T", key, val)
	}
	*dst = s
	return nil
}
