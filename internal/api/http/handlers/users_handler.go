package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/repair-shop-service/internal/api/dto"
	"github.com/spec-kit/repair-shop-service/internal/domain"
	"github.com/spec-kit/repair-shop-service/internal/service"
	apperrors "github.com/spec-kit/repair-shop-service/pkg/util/errorutil"
)

// UsersHandler exposes the user resource endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload")
	}

	input := service.CreateUserInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		IsDisabled:  req.IsDisabled,
		Role:        domain.Role(req.Role),
	}
	for _, q := range req.SelectedSecurityQuestions {
		input.SelectedSecurityQuestions = append(input.SelectedSecurityQuestions, service.SecurityQuestionInput{
			QuestionText: q.QuestionText,
			AnswerText:   q.AnswerText,
		})
	}

	user, err := h.users.CreateUser(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(userResponse(user))
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.GetUserByID(c.UserContext(), utils.CopyString(c.Params("id")))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Update handles PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	// An empty body is an empty patch, which only checks that the user exists.
	patch := domain.UserPatch{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&patch); err != nil {
			return apperrors.NewValidationError("invalid payload")
		}
	}
	if err := h.users.UpdateUser(c.UserContext(), utils.CopyString(c.Params("id")), patch); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Disable handles DELETE /users/:id. The user is soft-deleted.
func (h *UsersHandler) Disable(c *fiber.Ctx) error {
	if err := h.users.DisableUser(c.UserContext(), utils.CopyString(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func userResponse(u *domain.User) dto.UserResponse {
	questions := make([]dto.SecurityQuestionRequest, 0, len(u.SelectedSecurityQuestions))
	for _, q := range u.SelectedSecurityQuestions {
		questions = append(questions, dto.SecurityQuestionRequest{
			QuestionText: q.QuestionText,
			AnswerText:   q.AnswerText,
		})
	}
	return dto.UserResponse{
		ID:                        u.ID,
		Email:                     u.Email,
		FirstName:                 u.FirstName,
		LastName:                  u.LastName,
		PhoneNumber:               u.PhoneNumber,
		Address:                   u.Address,
		IsDisabled:                u.IsDisabled,
		Role:                      u.Role,
		SelectedSecurityQuestions: questions,
	}
}
