package models

import "time"

// Типы членства. Членство выдаётся только через платёжный контур.
const (
	MembershipFree     = "free"
	MembershipAnnual   = "annual"
	MembershipLifetime = "lifetime"
	MembershipAgent    = "agent"
)

// User хранится в блобе nexusAi_users; имена JSON-полей совместимы
// с ранее сохранёнными данными.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	PasswordHash     string     `json:"-"`
	Role             string     `json:"role"`
	IsVip            bool       `json:"isVip"`
	MembershipType   string     `json:"membershipType,omitempty"`
	MembershipExpiry *time.Time `json:"membershipExpiry,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// StoredUser — то же самое, но с хэшем пароля (для записи в kvstore).
// В публичном JSON User-а хэш намеренно скрыт.
type StoredUser struct {
	User
	PasswordHash string `json:"password_hash"`
}

func (u *User) ToStored() *StoredUser {
	return &StoredUser{User: *u, PasswordHash: u.PasswordHash}
}

func (su *StoredUser) ToUser() *User {
	u := su.User
	u.PasswordHash = su.PasswordHash
	return &u
}

type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *string `json:"role,omitempty"`
}

type UserProfileResponse struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Name             string         `json:"name"`
	Role             string         `json:"role"`
	IsVip            bool           `json:"isVip"`
	MembershipType   string         `json:"membershipType,omitempty"`
	MembershipExpiry *time.Time     `json:"membershipExpiry,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	Usage            map[string]int `json:"usage"`
}
