package model

import "time"

// Roles understood by the role middleware.
const (
    RoleAdmin  = "ADMIN"
    RoleMember = "MEMBER"
)

// User represents an account as stored in the `users` table.  The ID is
// the opaque identifier written into reservations.owner_id and the JWT
// subject, so it is a string rather than an auto-increment number.
//
// Fields:
//  ID           – uuid of the user.
//  Email        – unique login email.
//  DisplayName  – name other users see on a booked seat.
//  PasswordHash – bcrypt hash.
//  Role         – ADMIN or MEMBER.
//  IsActive     – whether the account may log in.
type User struct {
    ID           string    // users.id
    Email        string    // users.email
    DisplayName  string    // users.display_name
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    string     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
