package domain

import "time"

// User represents a profile row in the local user directory.
//
// The ID is the identity provider's subject id. It is the shared primary
// key between the directory and the provider and must never be regenerated
// or reassigned once a record exists.
type User struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email"`
	DisplayName string    `bson:"display_name,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}
