package domain

// Role distinguishes the two kinds of callers of the API. Tokens are issued
// by the external auth service; this service only reads the claim.
type Role string

const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
)
