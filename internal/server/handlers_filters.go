package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"photohub/internal/models"
)

func (s *Server) handleMetadata(c *gin.Context) {
	id, err := photoID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	md, err := s.filters.Metadata(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

func bindFilterRequest(c *gin.Context) (models.FilterRequest, bool) {
	var req models.FilterRequest
	if !bindJSON(c, &req) {
		return req, false
	}
	if req.ID == 0 {
		abortWithError(c, fmt.Errorf("%w: id is required", models.ErrValidation))
		return req, false
	}
	return req, true
}

func (s *Server) handleApplyFilter(c *gin.Context) {
	req, ok := bindFilterRequest(c)
	if !ok {
		return
	}
	photo, err := s.filters.Apply(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (s *Server) handleApplyFilterAsync(c *gin.Context) {
	req, ok := bindFilterRequest(c)
	if !ok {
		return
	}
	job, err := s.filters.ApplyAsync(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job.ID, "id": req.ID, "lastChange": req.LastChange})
}

func (s *Server) handleGetImage(c *gin.Context) {
	id, err := photoID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	img, err := s.filters.GetImage(c.Request.Context(), id, c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

func (s *Server) handleGetProfileImage(c *gin.Context) {
	img, err := s.users.ProfileImage(c.Request.Context(), c.Param("email"), c.Param("file"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, img.ContentType, img.Data)
}
