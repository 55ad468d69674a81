package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core/user"
)

// roleMiddleware lets through any authenticated user holding one of the given
// roles. Admins always pass.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if contextHasAnyRole(ctx, append(roles, user.RoleAdmin)...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware()
}

func teacherMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleTeacher)
}

func studentMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleStudent)
}
