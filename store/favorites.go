package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Favorite is a book a user saved, with enough metadata to render it
// without asking Gutendex again.
type Favorite struct {
	ID      uint      `gorm:"primaryKey" json:"-"`
	UserID  uint      `gorm:"not null;uniqueIndex:idx_favorites_user_book" json:"-"`
	BookID  int       `gorm:"not null;uniqueIndex:idx_favorites_user_book" json:"id"`
	Title   string    `json:"title"`
	Author  string    `json:"author"`
	Cover   string    `json:"cover"`
	AddedAt time.Time `json:"addedAt"`
}

// Favorites handles favorite rows.
type Favorites struct {
	db *gorm.DB
}

// Add saves a favorite. Adding a book twice replaces the stored metadata.
func (f *Favorites) Add(ctx context.Context, fav Favorite) error {
	if fav.AddedAt.IsZero() {
		fav.AddedAt = time.Now().UTC()
	}
	err := f.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "author", "cover", "added_at"}),
	}).Create(&fav).Error
	if err != nil {
		return fmt.Errorf("store: adding favorite %d: %w", fav.BookID, err)
	}
	return nil
}

// Remove deletes a favorite. Removing a missing favorite is not an error.
func (f *Favorites) Remove(ctx context.Context, userID uint, bookID int) error {
	err := f.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Delete(&Favorite{}).Error
	if err != nil {
		return fmt.Errorf("store: removing favorite %d: %w", bookID, err)
	}
	return nil
}

// List returns a user's favorites in the order they were added.
func (f *Favorites) List(ctx context.Context, userID uint) ([]Favorite, error) {
	favs := []Favorite{}
	err := f.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC, id ASC").
		Find(&favs).Error
	if err != nil {
		return nil, fmt.Errorf("store: listing favorites: %w", err)
	}
	return favs, nil
}

// BookIDs returns the set of favorite book ids for a user.
func (f *Favorites) BookIDs(ctx context.Context, userID uint) (map[int]bool, error) {
	var ids []int
	err := f.db.WithContext(ctx).Model(&Favorite{}).
		Where("user_id = ?", userID).
		Pluck("book_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("store: listing favorite ids: %w", err)
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
