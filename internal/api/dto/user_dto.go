package dto

import "github.com/spec-kit/repair-shop-service/internal/domain"

// SecurityQuestionRequest is one selected security question.
type SecurityQuestionRequest struct {
	QuestionText string `json:"questionText"`
	AnswerText   string `json:"answerText"`
}

// CreateUserRequest payload for new users.
type CreateUserRequest struct {
	Email                     string                    `json:"email"`
	Password                  string                    `json:"password"`
	FirstName                 string                    `json:"firstName"`
	LastName                  string                    `json:"lastName"`
	PhoneNumber               string                    `json:"phoneNumber"`
	Address                   string                    `json:"address"`
	IsDisabled                *bool                     `json:"isDisabled"`
	Role                      string                    `json:"role"`
	SelectedSecurityQuestions []SecurityQuestionRequest `json:"selectedSecurityQuestions"`
}

// UserResponse is the persisted user returned on creation. The password is withheld.
type UserResponse struct {
	ID                        string                    `json:"id"`
	Email                     string                    `json:"email"`
	FirstName                 string                    `json:"firstName"`
	LastName                  string                    `json:"lastName"`
	PhoneNumber               string                    `json:"phoneNumber"`
	Address                   string                    `json:"address"`
	IsDisabled                bool                      `json:"isDisabled"`
	Role                      domain.Role               `json:"role"`
	SelectedSecurityQuestions []SecurityQuestionRequest `json:"selectedSecurityQuestions"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Message string `json:"message"`
}
