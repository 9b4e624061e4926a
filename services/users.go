package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"costtrack-backend/models"
	"costtrack-backend/utils"

	"gorm.io/gorm"
)

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

type UserInput struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Role      string `json:"role" validate:"omitempty,oneof=admin sub-admin user"`
}

type UserPatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role" validate:"omitempty,oneof=admin sub-admin user"`
	Active    *bool   `json:"active"`
	Password  *string `json:"password" column:"-" validate:"omitempty,min=8"`
}

func CreateUser(ctx context.Context, db *gorm.DB, auth AuthContext, in UserInput) (*models.User, error) {
	const op = "CreateUser"
	if err := auth.require(PermManageUsers); err != nil {
		return nil, err
	}
	utils.NormalizeDTO(&in)
	in.Email = strings.ToLower(in.Email)
	role := models.Role(in.Role)
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, invalid(op, "unknown role %q", in.Role)
	}
	var taken int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, invalid(op, "email %s is already registered", in.Email)
	}
	user := models.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Role:      role,
		Active:    true,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func UpdateUser(ctx context.Context, db *gorm.DB, auth AuthContext, id string, patch UserPatch) (*models.User, error) {
	if err := auth.require(PermManageUsers); err != nil {
		return nil, err
	}
	user, err := GetUser(ctx, db, id)
	if err != nil {
		return nil, err
	}
	utils.NormalizeDTO(&patch)
	updates := utils.PatchColumns(&patch)
	if patch.Password != nil {
		if err := user.SetPassword(*patch.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password"] = user.Password
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return GetUser(ctx, db, id)
}

// Authenticate checks the credentials of an active user.
func Authenticate(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if err := user.ComparePassword(password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func GetUser(ctx context.Context, db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, lookup(err, "user", id)
	}
	return &user, nil
}

func ListUsers(ctx context.Context, db *gorm.DB, auth AuthContext) ([]models.User, error) {
	if err := auth.require(PermManageUsers); err != nil {
		return nil, err
	}
	var users []models.User
	err := db.WithContext(ctx).Order("last_name, first_name").Find(&users).Error
	return users, err
}
