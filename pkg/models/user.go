// Package models contains the business domain types and the wire payload
// models exchanged with clients.
package models

// User is an account known to the server, keyed by the identity provider's
// subject. Profile fields are refreshed from the token on every login.
type User struct {
	ID          string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Email       string  `json:"email"`
	PhotoURL    string  `json:"photoUrl"`
	Chats       []int64 `json:"chats"`
}

// InChat reports whether the user's chat list contains chatID.
func (u *User) InChat(chatID int64) bool {
	for _, id := range u.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}

// Profile is the public subset of a user embedded in wire payloads.
// Email is deliberately not exposed to other chat members.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// ProfileOf projects a user onto its public profile.
func ProfileOf(u *User) Profile {
	return Profile{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}
