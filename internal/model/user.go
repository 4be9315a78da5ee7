package model

// User is a snapshot of the GitHub profile taken at login time. It is not
// refreshed until the next login.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}
