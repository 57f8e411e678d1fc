package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a registered reader. Email is the login identifier.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Users handles user rows.
type Users struct {
	db *gorm.DB
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a user. It returns ErrEmailTaken when the email exists.
func (u *Users) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	user := &User{
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
	}
	if err := u.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("store: creating user: %w", err)
	}
	return user, nil
}

func (u *Users) ByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, notFound(err, "finding user by email")
	}
	return &user, nil
}

func (u *Users) ByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := u.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "finding user")
	}
	return &user, nil
}

func (u *Users) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := u.db.WithContext(ctx).Model(&User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: counting users: %w", err)
	}
	return n, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
