package users

import (
	"context"
	"time"
)

// ServiceInterface defines the contract for user business logic operations
type ServiceInterface interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Me(ctx context.Context, userID string) (*User, error)
	ListConsultants(ctx context.Context) ([]User, error)
	ListPendingUsers(ctx context.Context) ([]User, error)
	ApproveUser(ctx context.Context, actorID, userID string) (*User, error)
	RejectUser(ctx context.Context, actorID, userID string) (*User, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID, role string) (string, time.Time, error)
}
