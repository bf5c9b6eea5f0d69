package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"photohub/internal/models"
)

type statusRequest struct {
	ID     int64  `json:"id" binding:"required"`
	Status string `json:"status" binding:"required"`
}

type photoTagRequest struct {
	ID   int64  `json:"id" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type photoTagsRequest struct {
	ID   int64             `json:"id" binding:"required"`
	Tags []models.PhotoTag `json:"tags" binding:"required"`
}

type catalogTagRequest struct {
	Name       string `json:"name" binding:"required"`
	Popularity *int   `json:"popularity"`
}

func photoID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid photo id %q", models.ErrValidation, c.Param("id"))
	}
	return id, nil
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", models.ErrValidation, err))
		return false
	}
	return true
}

func (s *Server) handleListPhotos(c *gin.Context) {
	photos, err := s.photos.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, photos)
}

func (s *Server) handleUploadPhoto(c *gin.Context) {
	const op = "server.handleUploadPhoto"

	album := c.PostForm("album")
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

	photo, err := s.photos.Upload(c.Request.Context(), album, file.Filename, src)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, photo)
}

func (s *Server) handleGetPhoto(c *gin.Context) {
	id, err := photoID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	photo, err := s.photos.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (s *Server) handleDeletePhoto(c *gin.Context) {
	id, err := photoID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	photo, err := s.photos.Delete(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	photo, err := s.photos.UpdateStatus(c.Request.Context(), req.ID, req.Status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (s *Server) handleGetPhotoTags(c *gin.Context) {
	id, err := photoID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	tags, err := s.tags.GetPhotoTags(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (s *Server) handleAddPhotoTag(c *gin.Context) {
	var req photoTagRequest
	if !bindJSON(c, &req) {
		return
	}
	photo, err := s.tags.AddTagToPhoto(c.Request.Context(), req.ID, req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (s *Server) handleAddPhotoTags(c *gin.Context) {
	var req photoTagsRequest
	if !bindJSON(c, &req) {
		return
	}
	names := make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		names = append(names, t.Name)
	}
	photo, err := s.tags.AddTagsToPhoto(c.Request.Context(), req.ID, names)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, photo)
}

func (s *Server) handleListTags(c *gin.Context) {
	tags, err := s.tags.ListCatalog(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (s *Server) handleRawTags(c *gin.Context) {
	names, err := s.tags.RawNames(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

func (s *Server) handleGetTag(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: invalid tag id %q", models.ErrValidation, c.Param("id")))
		return
	}
	tag, err := s.tags.GetCatalogTag(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (s *Server) handleCreateTag(c *gin.Context) {
	var req catalogTagRequest
	if !bindJSON(c, &req) {
		return
	}
	tag, err := s.tags.AddCatalogTag(c.Request.Context(), req.Name, req.Popularity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}
