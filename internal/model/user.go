package model

import "time"

// Actor roles.  ADMIN and MANAGEMENT may approve, reject and manage
// reservations directly; CUSTOMER may only submit and view requests.
const (
	RoleAdmin      = "ADMIN"
	RoleManagement = "MANAGEMENT"
	RoleCustomer   = "CUSTOMER"
)

// User represents an application account as stored in the `users`
// table.  Only the bcrypt hash of the password is persisted.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – one of ADMIN, MANAGEMENT, CUSTOMER.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
