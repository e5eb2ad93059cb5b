package auth

import "github.com/SmallTownDocumentary/gallery-backend/internal/models"

type RegisterRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ProfileRequest fields are trimmed; empty clears the field.
type ProfileRequest struct {
	Bio             string `json:"bio"`
	Website         string `json:"website"`
	Location        string `json:"location"`
	ProfilePhotoURL string `json:"profilePhotoUrl"`
}

type MeResponse struct {
	ID              string      `json:"id"`
	Email           string      `json:"email"`
	Name            string      `json:"name"`
	Role            models.Role `json:"role"`
	Bio             *string     `json:"bio"`
	Website         *string     `json:"website"`
	Location        *string     `json:"location"`
	ProfilePhotoURL *string     `json:"profilePhotoUrl"`
}

func meFromUser(u *models.User) MeResponse {
	return MeResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		Bio:             u.Bio,
		Website:         u.Website,
		Location:        u.Location,
		ProfilePhotoURL: u.ProfilePhotoURL,
	}
}
