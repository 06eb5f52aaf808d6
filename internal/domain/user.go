package domain

import "time"

// User represents a registered author or reader.
type User struct {
	ID           string
	Username     string
	Email        string
	Bio          string
	Image        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserChanges carries the fields of a partial profile update; nil means unchanged.
type UserChanges struct {
	Username     *string
	Email        *string
	Bio          *string
	Image        *string
	PasswordHash *string
}

// Profile is the public view of a user relative to a viewer.
type Profile struct {
	Username  string
	Bio       string
	Image     string
	Following bool
}

// ProfileOf builds the public view of u; following is relative to the viewer.
func ProfileOf(u *User, following bool) Profile {
	return Profile{
		Username:  u.Username,
		Bio:       u.Bio,
		Image:     u.Image,
		Following: following,
	}
}
