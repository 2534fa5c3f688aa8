package auth

import (
	"errors"

	"gorm.io/gorm"

	domain "github.com/example/realtime-chat-demo/domain/user"
)

var (
	// ErrUserNotFound is returned when no account matches a lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a username is already taken.
	ErrUserExists = errors.New("user with this username already exists")
)

// UserStore persists accounts through GORM. The connection is opened with
// error translation enabled, so a unique-index violation surfaces as
// gorm.ErrDuplicatedKey here rather than as driver-specific text.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a UserStore on an open connection.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Insert persists a new account. A username collision maps to ErrUserExists.
func (s *UserStore) Insert(user *domain.User) error {
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// ByID looks an account up by its ID.
func (s *UserStore) ByID(id string) (*domain.User, error) {
	return s.one("id = ?", id)
}

// ByUsername looks an account up by username.
func (s *UserStore) ByUsername(username string) (*domain.User, error) {
	return s.one("username = ?", username)
}

func (s *UserStore) one(cond, arg string) (*domain.User, error) {
	var user domain.User
	if err := s.db.Where(cond, arg).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
