// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the access level attached to a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account that has signed in at least once.
//
// OpenID is the identifier handed to us by the sign-in provider. It is UNIQUE
// in the users table and never changes once the row exists; every sign-in
// looks the account up (or creates it) by this value. ID is our own numeric
// key, assigned by the store and used as the owner of tasks.
//
// Name, Email and LoginMethod are pointers because the provider may not send
// them at all, and we want to store NULL rather than an empty string.
type User struct {
	ID           int64     `json:"id"`
	OpenID       string    `json:"openId"`
	Name         *string   `json:"name"`
	Email        *string   `json:"email"`
	LoginMethod  *string   `json:"loginMethod"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastSignedIn time.Time `json:"lastSignedIn"`
}

// UserIdentity is the payload handed over by the sign-in flow. Only OpenID is
// required; nil fields were not supplied by the provider.
type UserIdentity struct {
	OpenID       string
	Name         *string
	Email        *string
	LoginMethod  *string
	Role         *Role
	LastSignedIn *time.Time
}

// UserFields is a set of optional user columns. A nil field is left out of
// the statement entirely.
type UserFields struct {
	Name         *string
	Email        *string
	LoginMethod  *string
	Role         *Role
	LastSignedIn *time.Time
}

// Empty reports whether no field is set.
func (f UserFields) Empty() bool {
	return f.Name == nil && f.Email == nil && f.LoginMethod == nil &&
		f.Role == nil && f.LastSignedIn == nil
}

// UserUpsert is an insert-or-update keyed by OpenID. Insert holds the values
// for a brand new row; Update holds the columns to overwrite when the OpenID
// already exists.
type UserUpsert struct {
	OpenID string
	Insert UserFields
	Update UserFields
}
