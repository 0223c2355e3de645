package repository

import (
	"context"

	"course-marketplace/internal/domain/model"
)

// -----------------------------
// Courses
// -----------------------------

type CourseRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Course) error
	// FindByID returns soft-deleted courses too; callers check Deleted().
	FindByID(ctx context.Context, tx Tx, id string) (*model.Course, error)
	ListActive(ctx context.Context, tx Tx, offset, limit int) ([]*model.Course, error)
}

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
}
