// Package user provides the account-service user profile entity.
package user

// User represents a signed-in user profile as returned by the account
// service. JSON tags follow the backend's wire format, including the
// mixed-case liked_Songs key.
type User struct {
	ID              string         `json:"id"`
	Username        string         `json:"username"`
	Email           string         `json:"email"`
	Country         string         `json:"country,omitempty"`
	ProfilePic      string         `json:"profilepic,omitempty"`
	Bio             string         `json:"bio,omitempty"`
	LikedSongs      []string       `json:"liked_Songs"`
	MoodSearchCount int            `json:"mood_search_count"`
	MoodHistory     map[string]int `json:"Mood_History,omitempty"`
}
