package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/ota-server/internal/domain/build"
	"github.com/oshokin/ota-server/internal/domain/update"
	"github.com/oshokin/ota-server/internal/repository/apikey"
	"github.com/oshokin/ota-server/internal/repository/registry"
)

// generateKeyRequest names a new API key.
type generateKeyRequest struct {
	// Name is the unique key name.
	Name string `json:"name" binding:"required"`
}

// handleUpsertBuild answers POST /admin/builds. The request is a multipart
// form carrying build metadata and an optional package upload.
func (s *Server) handleUpsertBuild(c *gin.Context) {
	buildID := c.PostForm("build_id")
	if buildID == "" {
		badRequest(c, "build_id is required")

		return
	}

	overwrite, _ := strconv.ParseBool(c.PostForm("overwrite"))

	input := update.UpsertInput{
		BuildID:     buildID,
		Version:     c.PostForm("version"),
		PatchNotes:  c.PostForm("patch_notes"),
		ReleaseDate: c.PostForm("release_date"),
		Overwrite:   overwrite,
	}

	fileHeader, err := c.FormFile("package")
	if err == nil {
		f, openErr := fileHeader.Open()
		if openErr != nil {
			internalError(c, openErr)

			return
		}

		defer f.Close()

		input.Package = f
	}

	outcome, rec, err := s.service.UpsertBuild(c.Request.Context(), input)

	var conflict *registry.ConflictError

	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"status":           "error",
			"message":          "Build ID already exists, pass overwrite to replace it",
			"build_id":         conflict.BuildID,
			"existing_version": conflict.ExistingVersion,
		})
	case err != nil:
		internalError(c, err)
	default:
		status := http.StatusOK
		if outcome == build.OutcomeCreated {
			status = http.StatusCreated
		}

		c.JSON(status, gin.H{
			"status":   outcome.String(),
			"build_id": buildID,
			"version":  rec.Version,
			"filename": rec.Filename,
			"checksum": rec.Checksum,
		})
	}
}

// handleDeleteBuild answers DELETE /admin/builds/:build_id.
func (s *Server) handleDeleteBuild(c *gin.Context) {
	buildID := c.Param("build_id")

	trashPath, err := s.service.DeleteBuild(c.Request.Context(), buildID)

	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": msgBuildNotFound,
		})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":     "deleted",
			"build_id":   buildID,
			"trash_path": trashPath,
		})
	}
}

// handleGenerateKey answers POST /admin/keys. The secret appears in this
// response only; it is never listed again.
func (s *Server) handleGenerateKey(c *gin.Context) {
	var req generateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")

		return
	}

	secret, err := s.service.GenerateKey(c.Request.Context(), req.Name)

	switch {
	case errors.Is(err, apikey.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{
			"status":  "error",
			"message": "API key name already exists",
		})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusCreated, gin.H{
			"name":    req.Name,
			"api_key": secret,
		})
	}
}

// handleRevokeKey answers DELETE /admin/keys/:name.
func (s *Server) handleRevokeKey(c *gin.Context) {
	err := s.service.RevokeKey(c.Request.Context(), c.Param("name"))

	switch {
	case errors.Is(err, apikey.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "API key not found",
		})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "revoked"})
	}
}

// handleListKeys answers GET /admin/keys with key names only.
func (s *Server) handleListKeys(c *gin.Context) {
	names, err := s.service.ListKeys(c.Request.Context())
	if err != nil {
		internalError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"keys": names})
}
