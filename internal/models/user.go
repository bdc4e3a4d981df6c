package models

// User is the authenticated identity as reported by the backend's session endpoints.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Credits  *int   `json:"credits,omitempty"`
}

// HasCredits reports whether the backend included a credit balance.
func (u User) HasCredits() bool {
	return u.Credits != nil
}
