package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"fleetops/internal/domain/workflow"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	UserID      uint64
	Username    string
	DisplayName string
	Roles       []workflow.Role
	FixSalary   decimal.Decimal
	Allowance   decimal.Decimal
	IsActive    bool
}

type UserRepository interface {
	GetByID(ctx context.Context, userID uint64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	ListActive(ctx context.Context) ([]User, error)
	Create(ctx context.Context, user User) (User, error)
}
