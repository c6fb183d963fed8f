package handlers

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coldtruck/coldtruck-backend/internal/models"
	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/internal/utils"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// UserHandler handles user listing, registration and login
type UserHandler struct {
	store storage.Store
	log   logger.Logger
	now   func() time.Time
}

// NewUserHandler creates a new user handler
func NewUserHandler(store storage.Store, log logger.Logger) *UserHandler {
	return &UserHandler{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// GetUsers lists all users
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.store.ListUsers(c.UserContext())
	if err != nil {
		h.log.Error("Failed to list users", "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}
	if users == nil {
		users = []*models.User{}
	}
	return c.JSON(users)
}

// CreateUser registers a new admin or driver
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var reg models.UserRegistration
	if err := c.BodyParser(&reg); err != nil {
		return message(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, msg := h.buildUser(&reg)
	if msg != "" {
		return message(c, fiber.StatusBadRequest, msg)
	}

	hash, err := utils.HashPassword(reg.Password)
	if err != nil {
		h.log.Error("Failed to hash password", "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}
	user.Password = hash

	if err := h.store.CreateUser(c.UserContext(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return message(c, fiber.StatusBadRequest, "User already exists")
		}
		h.log.Error("Failed to create user", "email", user.Email, "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}

	h.log.Info("User created", "userId", user.ID, "role", user.Role)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"msg":  "User created successfully",
		"user": user,
	})
}

// buildUser validates a registration. A non-empty message means the
// payload was rejected.
func (h *UserHandler) buildUser(reg *models.UserRegistration) (*models.User, string) {
	if reg.ID == nil || *reg.ID == 0 {
		return nil, "User id is required"
	}
	if strings.TrimSpace(reg.Name) == "" || strings.TrimSpace(reg.LastName) == "" {
		return nil, "Name and last name are required"
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return nil, "A valid email is required"
	}
	if len(reg.Password) < 6 {
		return nil, "Password must be at least 6 characters"
	}

	role := strings.ToLower(strings.TrimSpace(reg.Role))
	if role == "" {
		role = models.RoleDriver
	}
	if role != models.RoleDriver && role != models.RoleAdmin {
		return nil, "Role must be admin or driver"
	}

	// OnTrip is only ever set by starting a trip
	switch reg.Status {
	case "", models.StatusAvailable, models.StatusInactive:
	default:
		return nil, "Status must be Available or Inactive"
	}

	return &models.User{
		ID:               *reg.ID,
		Name:             strings.TrimSpace(reg.Name),
		LastName:         strings.TrimSpace(reg.LastName),
		SecondLastName:   strings.TrimSpace(reg.SecondLastName),
		Email:            strings.TrimSpace(reg.Email),
		PhoneNumber:      strings.TrimSpace(reg.PhoneNumber),
		Status:           reg.Status,
		Role:             role,
		RegistrationDate: h.registrationDate(reg.RegistrationDate),
		License:          reg.License,
		ProfilePicture:   reg.ProfilePicture,
	}, ""
}

func (h *UserHandler) registrationDate(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return h.now().UTC()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks an email and password pair
func (h *UserHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	user, err := h.store.GetUserByEmail(c.UserContext(), strings.TrimSpace(req.Email))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		h.log.Error("Login lookup failed", "error", err)
		return message(c, fiber.StatusInternalServerError, services.MsgServerError)
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Incorrect password",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user": fiber.Map{
			"id":       user.ID,
			"name":     user.Name,
			"lastName": user.LastName,
			"email":    user.Email,
			"status":   user.Status,
			"image":    user.ProfilePicture,
			"role":     user.Role,
		},
	})
}
