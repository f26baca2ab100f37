package server

import (
	"fmt"

	"warbler/internal/models"
	"warbler/internal/service"
	"warbler/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// SignupPage handles GET /signup. Visiting it signs out any current session.
func (s *Server) SignupPage(c *fiber.Ctx) error {
	if currentUserID(c) != 0 {
		s.endSession(c)
	}
	return s.render(c, fiber.StatusOK, fiber.Map{"form": "signup"})
}

// Signup handles POST /signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var form validation.SignupForm
	if err := s.bindForm(c, "signup", &form); err != nil {
		return nil
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		ImageURL: form.ImageURL,
	})
	if err != nil {
		return s.formError(c, "signup", err)
	}

	if currentUserID(c) != 0 {
		s.endSession(c)
	}
	if err := s.startSession(c, user); err != nil {
		return err
	}
	return c.Redirect("/", fiber.StatusFound)
}

// LoginPage handles GET /login
func (s *Server) LoginPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, fiber.Map{"form": "login"})
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	var form validation.LoginForm
	if err := s.bindForm(c, "login", &form); err != nil {
		return nil
	}

	user, err := s.userService.Authenticate(c.UserContext(), form.Username, form.Password)
	if err != nil {
		return err
	}
	if user == nil {
		return s.formError(c, "login", models.NewInvalidCredentialsError("Invalid credentials."))
	}

	if currentUserID(c) != 0 {
		s.endSession(c)
	}
	if err := s.startSession(c, user); err != nil {
		return err
	}
	setFlash(c, flashSuccess, fmt.Sprintf("Hello, %s!", user.Username))
	return c.Redirect("/", fiber.StatusFound)
}

// Logout handles POST /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	s.endSession(c)
	setFlash(c, flashSuccess, "You have successfully logged out.")
	return c.Redirect("/login", fiber.StatusFound)
}
