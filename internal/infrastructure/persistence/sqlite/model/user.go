package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	UserID      uint64          `gorm:"column:user_id;primaryKey;autoIncrement"`
	Username    string          `gorm:"column:username;type:text;not null;uniqueIndex"`
	DisplayName string          `gorm:"column:display_name;type:text;not null"`
	FixSalary   decimal.Decimal `gorm:"column:fix_salary;type:text;not null"`
	Allowance   decimal.Decimal `gorm:"column:allowance;type:text;not null"`
	IsActive    bool            `gorm:"column:is_active;not null;default:1"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;type:datetime;not null"`
}

func (User) TableName() string {
	return "users"
}

type UserRole struct {
	UserID uint64 `gorm:"column:user_id;not null;uniqueIndex:ux_user_role,priority:1"`
	Role   string `gorm:"column:role;type:text;not null;uniqueIndex:ux_user_role,priority:2"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
