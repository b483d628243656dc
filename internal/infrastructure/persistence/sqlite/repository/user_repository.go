package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/ports"
)

type UserRepository struct {
	db *gorm.DB
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID uint64) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, ports.ErrUserNotFound
		}
		return ports.User{}, errs.Wrap(err, "query user")
	}
	return r.withRoles(db, row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	var row model.User
	if err := db.Where("username = ?", username).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.User{}, ports.ErrUserNotFound
		}
		return ports.User{}, errs.Wrap(err, "query user by username")
	}
	return r.withRoles(db, row)
}

func (r *UserRepository) ListActive(ctx context.Context) ([]ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.User
	if err := db.Where("is_active = ?", true).Order("user_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query active users")
	}

	users := make([]ports.User, 0, len(rows))
	for _, row := range rows {
		user, err := r.withRoles(db, row)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user ports.User) (ports.User, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.User{}, err
	}

	now := time.Now().UTC()
	row := model.User{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		FixSalary:   user.FixSalary,
		Allowance:   user.Allowance,
		IsActive:    user.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.User{}, errs.Wrap(err, "insert user")
	}

	if len(user.Roles) > 0 {
		roleRows := make([]model.UserRole, 0, len(user.Roles))
		for _, role := range user.Roles {
			roleRows = append(roleRows, model.UserRole{
				UserID: row.UserID,
				Role:   string(role),
			})
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&roleRows).Error; err != nil {
			return ports.User{}, errs.Wrap(err, "insert user roles")
		}
	}

	created := user
	created.UserID = row.UserID
	return created, nil
}

func (r *UserRepository) withRoles(db *gorm.DB, row model.User) (ports.User, error) {
	var roleRows []model.UserRole
	if err := db.Where("user_id = ?", row.UserID).Order("role asc").Find(&roleRows).Error; err != nil {
		return ports.User{}, errs.Wrap(err, "query user roles")
	}

	roles := make([]workflow.Role, 0, len(roleRows))
	for _, roleRow := range roleRows {
		roles = append(roles, workflow.Role(roleRow.Role))
	}

	return ports.User{
		UserID:      row.UserID,
		Username:    row.Username,
		DisplayName: row.DisplayName,
		Roles:       roles,
		FixSalary:   row.FixSalary,
		Allowance:   row.Allowance,
		IsActive:    row.IsActive,
	}, nil
}
