package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// Role is the account role of a user.
type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdmin
}

// Patch keys understood by every store.
const (
	FieldID                        = "id"
	FieldMongoID                   = "_id"
	FieldEmail                     = "email"
	FieldPassword                  = "password"
	FieldFirstName                 = "firstName"
	FieldLastName                  = "lastName"
	FieldPhoneNumber               = "phoneNumber"
	FieldAddress                   = "address"
	FieldIsDisabled                = "isDisabled"
	FieldRole                      = "role"
	FieldSelectedSecurityQuestions = "selectedSecurityQuestions"
)

// SecurityQuestion is a question chosen by the user with its answer.
type SecurityQuestion struct {
	QuestionText string `json:"questionText" bson:"questionText"`
	AnswerText   string `json:"answerText" bson:"answerText"`
}

// User is an account in the repair shop system. Password is stored as supplied.
type User struct {
	ID                        string             `json:"id"`
	Email                     string             `json:"email"`
	Password                  string             `json:"-"`
	FirstName                 string             `json:"firstName"`
	LastName                  string             `json:"lastName"`
	PhoneNumber               string             `json:"phoneNumber"`
	Address                   string             `json:"address"`
	IsDisabled                bool               `json:"isDisabled"`
	Role                      Role               `json:"role"`
	SelectedSecurityQuestions []SecurityQuestion `json:"selectedSecurityQuestions,omitempty"`
}

// Summary projects the user to its public listing shape.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

// UserSummary is the projection returned by list and get-by-id.
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// UserPatch is a set of field overwrites keyed by API field name.
type UserPatch map[string]any

// ValidUserID reports whether id has the store identifier shape (24 hex chars).
func ValidUserID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// NewUserID generates a fresh identifier for stores that do not assign one.
func NewUserID() string {
	return primitive.NewObjectID().Hex()
}
