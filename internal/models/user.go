package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User is the read-only view of the identity provider's user document
// that messaging consumes for display names and avatars.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username    string             `bson:"username" json:"username"`
	DisplayName string             `bson:"displayName,omitempty" json:"displayName,omitempty"`
	Avatar      string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

// Name returns the best display string for the user.
func (u *User) Name() string {
	if u == nil {
		return "Unknown user"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown user"
}
