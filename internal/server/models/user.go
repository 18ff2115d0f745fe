// Package models defines server-side data models persisted in the database.
package models

import "time"

// Permission is a capability bit held by a user. Bits are independent and
// composable; a user's Permissions field is the OR of its grants.
type Permission int64

const (
	// AdminProduct allows creating and editing products.
	AdminProduct Permission = 1 << iota
	// AdminEdition allows creating, editing, and deprecating editions.
	AdminEdition
	// UploadBuild allows registering build metadata and confirming uploads.
	UploadBuild
	// DeprecateBuild allows marking builds as deprecated.
	DeprecateBuild
)

// FullPermissions returns the permission set granting every capability.
func FullPermissions() Permission {
	return AdminProduct | AdminEdition | UploadBuild | DeprecateBuild
}

// User is an API user with a password hash and a permission set.
type User struct {
	ID           int64
	UserName     string
	PasswordHash []byte
	Permissions  Permission
	CreatedAt    time.Time
}

// Can reports whether the user holds the given capability. It is a pure
// predicate: authorization checks call it before any state is touched.
func (u *User) Can(p Permission) bool {
	return u != nil && u.Permissions&p == p
}
