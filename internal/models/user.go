package models

import "time"

// DefaultPhoto is assigned to accounts registered without a photo.
const DefaultPhoto = "https://i.ibb.co/4pDNDk1/avatar.png"

// User represents an inventory account.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	Photo     string    `json:"photo" gorm:"type:varchar(500)"`
	Bio       string    `json:"bio" gorm:"type:varchar(250)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile is the public view of a User.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
	Bio   string `json:"bio"`
}

// Profile strips the credential from u.
func (u *User) Profile() Profile {
	return Profile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Photo: u.Photo,
		Bio:   u.Bio,
	}
}
