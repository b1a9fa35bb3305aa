package users

import (
	"time"

	"github.com/hdu-care/hdu-service/internal/audit"
)

// Account statuses. New registrations start pending.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// User represents a staff account
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"fullName"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	ReviewedBy   *string    `json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// AuditSnapshot never includes the password hash.
func (u User) AuditSnapshot() audit.State {
	return audit.State{
		"username":   u.Username,
		"email":      u.Email,
		"fullName":   u.FullName,
		"role":       u.Role,
		"status":     u.Status,
		"reviewedBy": u.ReviewedBy,
	}
}

// RegisterRequest represents a self-service registration
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// LoginRequest accepts either the username or the email as identifier.
// Older clients send it as "username" or "email".
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (r LoginRequest) identifier() string {
	switch {
	case r.Identifier != "":
		return r.Identifier
	case r.Username != "":
		return r.Username
	default:
		return r.Email
	}
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

type UserResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    *User  `json:"user"`
}

type LoginResponse struct {
	Success bool `json:"success"`
	LoginResult
}

type UserListResponse struct {
	Success bool   `json:"success"`
	Users   []User `json:"users"`
	Count   int    `json:"count"`
}

// AccountStatusResponse is the 403 body for pending or rejected accounts.
type AccountStatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
