package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"photohub/internal/models"
	"photohub/internal/service"
)

func (s *Server) handleRegister(c *gin.Context) {
	var in service.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := s.users.Register(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) handleLogin(c *gin.Context) {
	var in service.LoginInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := s.users.Login(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// selfOnly returns the :id parameter if it names the authenticated user.
func selfOnly(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if currentUser(c).ID != id {
		abortWithError(c, fmt.Errorf("%w: users may only access their own account", models.ErrForbidden))
		return "", false
	}
	return id, true
}

func (s *Server) handleGetUser(c *gin.Context) {
	id, ok := selfOnly(c)
	if !ok {
		return
	}
	u, err := s.users.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := selfOnly(c)
	if !ok {
		return
	}
	s.updateUser(c, id)
}

func (s *Server) updateUser(c *gin.Context, id string) {
	var in service.UpdateUserInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := s.users.Update(c.Request.Context(), id, in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	id, ok := selfOnly(c)
	if !ok {
		return
	}
	if err := s.users.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	if token := c.GetString(ctxTokenKey); token != "" {
		_ = s.users.Logout(c.Request.Context(), token)
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

func (s *Server) handleChangePassword(c *gin.Context) {
	id, ok := selfOnly(c)
	if !ok {
		return
	}
	var in service.ChangePasswordInput
	if !bindJSON(c, &in) {
		return
	}
	if err := s.users.ChangePassword(c.Request.Context(), id, in); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c).Public())
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	s.updateUser(c, currentUser(c).ID)
}

func (s *Server) handleUploadProfilePhoto(c *gin.Context) {
	const op = "server.handleUploadProfilePhoto"

	file, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, fmt.Errorf("%s: %w: file is required", op, models.ErrValidation))
		return
	}
	if file.Size > s.cfg.MaxUpload {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	src, err := file.Open()
	if err != nil {
		abortWithError(c, fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err))
		return
	}
	defer src.Close()

	u, err := s.users.UploadProfilePhoto(c.Request.Context(), currentUser(c).ID, file.Filename, src)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.users.Logout(c.Request.Context(), c.GetString(ctxTokenKey)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
