package domain

import "time"

// Profile maps a stable player identity to a mutable display name.
// Username is empty until the player picks one.
type Profile struct {
	Identity  string    `json:"identity"`
	Username  string    `json:"username,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session represents the current signed-in state. Identity is empty when
// nobody is signed in.
type Session struct {
	Identity string `json:"identity,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Credentials carries sign-in input: email/password or a provider token.
type Credentials struct {
	Email         string `json:"email,omitempty"`
	Password      string `json:"password,omitempty"`
	ProviderToken string `json:"provider_token,omitempty"`
}

// Username bounds, runes after trimming.
const (
	UsernameMinLen = 3
	UsernameMaxLen = 20
)
