package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Walrus/app/models"
)

// UserContext represents the authenticated member of a request
type UserContext struct {
	MemberID        uint           `json:"member_id"`
	Name            string         `json:"name"`
	IsAuthenticated bool           `json:"is_authenticated"`
	IsStaff         bool           `json:"is_staff"`
	Member          *models.Member `json:"-"`
}

// GetUserContext retrieves the user context from fiber context
// Returns an anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// Set stores the member as the request's user context.
func Set(c *fiber.Ctx, member *models.Member) {
	c.Locals(KeyUserContext, UserContext{
		MemberID:        member.ID,
		Name:            member.Name,
		IsAuthenticated: true,
		IsStaff:         member.IsStaff(),
		Member:          member,
	})
	c.Locals(KeyMemberID, member.ID)
	c.Locals(KeyIsStaff, member.IsStaff())
}

// Member returns the authenticated member or nil.
func Member(c *fiber.Ctx) *models.Member {
	return GetUserContext(c).Member
}

func IsStaff(c *fiber.Ctx) bool {
	return GetUserContext(c).IsStaff
}

func GetMemberID(c *fiber.Ctx) uint {
	return GetUserContext(c).MemberID
}
