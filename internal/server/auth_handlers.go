package server

import (
	"chirp/internal/models"
	"chirp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type signupRequest struct {
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name" validate:"max=64"`
	Username  string `json:"username" validate:"required,chirp_username"`
	Email     string `json:"email" validate:"required,chirp_email"`
	Password  string `json:"password" validate:"required,chirp_password"`
}

type signinRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// refreshRequest is shared by logout and refresh-token. Username is optional;
// when present it must match the user the token was issued to.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	Username     string `json:"username"`
}

// Signup handles POST /api/auth/sign-up
// @Summary User signup
// @Description Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signupRequest true "Signup request"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/sign-up [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.auth.Signup(c.UserContext(), service.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles POST /api/auth/sign-in
// @Summary User login
// @Description Exchange credentials for an access and refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signinRequest true "Login request"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/sign-in [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req signinRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	resp, err := s.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke a refresh token. Revoking an unknown token succeeds.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body refreshRequest true "Logout request"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.auth.Logout(c.UserContext(), req.RefreshToken, req.Username); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RefreshToken handles POST /api/auth/refresh-token
// @Summary Refresh session
// @Description Rotate a refresh token and issue a new access token. Each refresh token works once.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body refreshRequest true "Refresh request"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh-token [post]
func (s *Server) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := s.parseBody(c, &req); err != nil {
		return nil
	}

	resp, err := s.auth.RefreshToken(c.UserContext(), req.RefreshToken, req.Username)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

// GetUsernames handles GET /api/auth/usernames
// @Summary List usernames
// @Tags auth
// @Produce json
// @Success 200 {array} string
// @Router /auth/usernames [get]
func (s *Server) GetUsernames(c *fiber.Ctx) error {
	names, err := s.auth.FindAllUsernames(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(names)
}

// GetMe handles GET /api/users/me
// @Summary Current user
// @Description Resolve the bearer token to its user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	user := actor(c)
	if user == nil {
		return fail(c, models.NewInvalidTokenError())
	}
	return c.JSON(user)
}
