package controllers

import (
	"costtrack-backend/middlewares"
	"costtrack-backend/services"

	"github.com/gofiber/fiber/v2"
)

type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/login
func Login(c *fiber.Ctx) error {
	var in LoginDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, _, err := requestDB(c)
	if err != nil {
		return err
	}

	user, err := services.Authenticate(c.UserContext(), db, in.Email, in.Password)
	if err != nil {
		return err
	}
	token, err := middlewares.GenerateJWT(user, deps.JWTSecret, deps.JWTTTL)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.Id,
			"name":  user.FullName(),
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// POST /api/logout
// Tokens are stateless; the client drops its copy.
func Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "success",
	})
}

// GET /api/me
func Me(c *fiber.Ctx) error {
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	user, err := services.GetUser(c.UserContext(), db, auth.UserID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// POST /api/users
func CreateUser(c *fiber.Ctx) error {
	var in services.UserInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	user, err := services.CreateUser(c.UserContext(), db, auth, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GET /api/users
func GetUsers(c *fiber.Ctx) error {
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	users, err := services.ListUsers(c.UserContext(), db, auth)
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// PUT /api/users/:id
func UpdateUser(c *fiber.Ctx) error {
	var in services.UserPatch
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, auth, err := requestDB(c)
	if err != nil {
		return err
	}
	user, err := services.UpdateUser(c.UserContext(), db, auth, c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(user)
}
