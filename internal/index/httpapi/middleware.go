package httpapi

import (
	"strings"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/index/auth"
	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// requireToken authenticates "Authorization: Bearer <jwt>" and stores the
// identity in the echo context.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return common.ErrUnauthorized
		}

		id, err := s.auth.Authenticate(token)
		if err != nil {
			return err
		}

		c.Set(identityKey, id)
		return next(c)
	}
}

func identity(c echo.Context) auth.Identity {
	id, _ := c.Get(identityKey).(auth.Identity)
	return id
}
