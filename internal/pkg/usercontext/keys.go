package usercontext

// Locals keys set by the authentication middleware
const (
	KeyUserContext = "USER_CONTEXT"
	KeyMemberID    = "member_id"
	KeyIsStaff     = "is_staff"
)
