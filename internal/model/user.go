package model

import "time"

// ScopeUsers is the single scope carried by every token this service issues.
const ScopeUsers = "users"

// User represents a registered account. Phone is the login identifier.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Phone        string    `json:"no_hp"`
	Address      string    `json:"alamat"`
	PasswordHash string    `json:"-"` // Do not expose password hash in JSON responses
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest is the body accepted by the register endpoint
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Role     string `json:"role" binding:"required,max=10"`
	Phone    string `json:"no_hp" binding:"required,max=15"`
	Address  string `json:"alamat" binding:"required,max=255"`
	Password string `json:"password" binding:"required,password"`
}

// LoginRequest is the body accepted by the login endpoint
type LoginRequest struct {
	Phone    string `json:"no_hp" binding:"required"`
	Password string `json:"password" binding:"required"`
}
