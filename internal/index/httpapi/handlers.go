package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/models"
	"github.com/labstack/echo/v4"
)

type challengeRequest struct {
	Wallet string `json:"wallet"`
}

type loginRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

type userPayload struct {
	ID     string `json:"id"`
	Wallet string `json:"wallet"`
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}

// POST /api/auth/challenge
func (s *Server) challenge(c echo.Context) error {
	var req challengeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ch, err := s.auth.Challenge(c.Request().Context(), req.Wallet)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ch)
}

// POST /api/auth/login
func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	token, user, err := s.auth.Login(c.Request().Context(), req.Wallet, req.Signature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, User: userPayload{ID: user.ID, Wallet: user.Wallet}})
}

// POST /api/files
func (s *Server) insertFile(c echo.Context) error {
	var in models.NewUpload
	if err := bind(c, &in); err != nil {
		return err
	}
	rec, err := s.files.Insert(c.Request().Context(), identity(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"file": rec})
}

// GET /api/files?limit=&offset=
func (s *Server) listFiles(c echo.Context) error {
	limit, err := intParam(c, "limit")
	if err != nil {
		return err
	}
	offset, err := intParam(c, "offset")
	if err != nil {
		return err
	}
	list, err := s.files.List(c.Request().Context(), identity(c), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"files": list})
}

func intParam(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrValidation, name)
	}
	return n, nil
}

// GET /api/files/:id
func (s *Server) getFile(c echo.Context) error {
	rec, err := s.files.Get(c.Request().Context(), identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"file": rec})
}

// DELETE /api/files/:id
func (s *Server) deleteFile(c echo.Context) error {
	if err := s.files.Delete(c.Request().Context(), identity(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// GET /api/stats
func (s *Server) stats(c echo.Context) error {
	st, err := s.files.Stats(c.Request().Context(), identity(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"stats": st})
}

// POST /api/share
func (s *Server) createShare(c echo.Context) error {
	var in models.NewShareLink
	if err := bind(c, &in); err != nil {
		return err
	}
	link, err := s.shares.Create(c.Request().Context(), identity(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"share": link})
}

// GET /api/files/:id/shares
func (s *Server) listShares(c echo.Context) error {
	list, err := s.shares.ListForFile(c.Request().Context(), identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"shares": list})
}

// DELETE /api/share/:id
func (s *Server) deleteShare(c echo.Context) error {
	if err := s.shares.Delete(c.Request().Context(), identity(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// GET /api/share?key=&password=
func (s *Server) resolveShare(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return fmt.Errorf("%w: key is required", common.ErrValidation)
	}
	out, err := s.shares.Resolve(c.Request().Context(), key, c.QueryParam("password"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
