package handlers

import (
	"strings"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const localsUser = "user"

type AuthHandler struct {
	Users *UserRegistry
}

func NewAuthHandler(users *UserRegistry) *AuthHandler {
	return &AuthHandler{Users: users}
}

// Signup creates an account; 400 carries a field error map
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var request models.SignupRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, fields := h.Users.Register(request)
	if len(fields) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fields)
	}

	logrus.WithFields(logrus.Fields{
		"component": "AuthHandler",
		"username":  user.Username,
	}).Info("User registered")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    user,
		"message": "User created successfully",
	})
}

// Login issues an access/refresh pair
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var request struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	fields := make(map[string][]string)
	if request.Username == "" {
		fields["username"] = []string{detailRequired}
	}
	if request.Password == "" {
		fields["password"] = []string{detailRequired}
	}
	if len(fields) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fields)
	}

	response, err := h.Users.Authenticate(request.Username, request.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"detail": detailBadCredentials,
		})
	}
	return c.JSON(response)
}

// Logout blacklists the posted refresh token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var request struct {
		Refresh string `json:"refresh"`
	}
	if err := c.BodyParser(&request); err != nil || request.Refresh == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": detailInvalidToken,
		})
	}

	if err := h.Users.Blacklist(request.Refresh); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": detailInvalidToken,
		})
	}
	return c.Status(fiber.StatusResetContent).JSON(fiber.Map{
		"detail": "Logout successful.",
	})
}

// RequireAuth rejects requests without a valid bearer token
func (h *AuthHandler) RequireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"detail": detailNoCredentials,
		})
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"detail": detailTokenNotAllowed,
		})
	}

	user, err := h.Users.Lookup(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"detail": detailTokenNotAllowed,
		})
	}

	c.Locals(localsUser, user)
	return c.Next()
}
