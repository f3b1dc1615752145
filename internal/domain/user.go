package domain

import "time"

// Auth providers recorded on a User.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

type User struct {
	UserID        string     `json:"id" dynamodbav:"user_id"`
	Username      string     `json:"username" dynamodbav:"username"`
	Email         string     `json:"email" dynamodbav:"email"`
	PasswordHash  string     `json:"-" dynamodbav:"password_hash,omitempty"`
	FirstName     string     `json:"first_name" dynamodbav:"first_name"`
	LastName      string     `json:"last_name" dynamodbav:"last_name"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty" dynamodbav:"date_of_birth,omitempty"`
	ProfileImgURL string     `json:"profile_img_url" dynamodbav:"profile_img_url"`
	CoverImgURL   *string    `json:"cover_img_url,omitempty" dynamodbav:"cover_img_url,omitempty"`
	Bio           *string    `json:"bio,omitempty" dynamodbav:"bio,omitempty"`
	Location      *string    `json:"location,omitempty" dynamodbav:"location,omitempty"`
	AuthProvider  string     `json:"auth_provider,omitempty" dynamodbav:"auth_provider"` // "local" | "google"
	CreatedAt     time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// HasPassword is false for accounts created through an external provider
// that never went through a password step.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

type SignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD or MM/DD/YYYY
}

type CreateAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginCredsRequest struct {
	// Identifier is an email address or a username.
	Identifier string `json:"email" validate:"required"`
	AuthType   string `json:"auth_type" validate:"required,oneof=login forgotpass"`
}

type PasswordLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// EditProfileRequest replaces the editable profile fields. FirstName and
// ProfileImgURL are mandatory; nil optional fields keep their stored value.
type EditProfileRequest struct {
	FirstName     string  `json:"first_name" validate:"required"`
	ProfileImgURL string  `json:"profile_img_url" validate:"required"`
	LastName      *string `json:"last_name"`
	CoverImgURL   *string `json:"cover_img_url"`
	Bio           *string `json:"bio"`
	Location      *string `json:"location"`
}
