package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/ota-server/internal/domain/update"
	"github.com/oshokin/ota-server/internal/logger"
	"github.com/oshokin/ota-server/internal/repository/registry"
	"github.com/oshokin/ota-server/internal/storage/artifact"
)

// Device-facing response messages. Device firmware matches on these strings,
// so they are part of the wire contract.
const (
	msgBuildNotFound   = "Build ID not found"
	msgPackageNotFound = "Update package file not found on server"
)

// checkUpdateRequest is a device's update check.
type checkUpdateRequest struct {
	// BuildID is the build currently installed on the device.
	BuildID string `json:"build_id" binding:"required"`
}

// validateChecksumRequest is a device's checksum validation call.
type validateChecksumRequest struct {
	// BuildID identifies the build whose package was downloaded.
	BuildID string `json:"build_id" binding:"required"`
	// Checksum is the hex SHA-256 digest the device computed.
	Checksum string `json:"checksum" binding:"required"`
}

// handleCheckUpdate answers POST /v1/check-update.
func (s *Server) handleCheckUpdate(c *gin.Context) {
	var req checkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "build_id is required")

		return
	}

	decision, err := s.service.CheckUpdate(c.Request.Context(), req.BuildID)
	if err != nil {
		internalError(c, err)

		return
	}

	switch decision.Status {
	case update.StatusUnknownBuild:
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": msgBuildNotFound,
		})
	case update.StatusUpToDate:
		c.JSON(http.StatusOK, gin.H{"status": "up-to-date"})
	case update.StatusPackageMissing:
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": msgPackageNotFound,
		})
	case update.StatusAvailable:
		c.JSON(http.StatusOK, gin.H{
			"status":      "update-available",
			"build_id":    decision.BuildID,
			"version":     decision.Version,
			"package_url": decision.PackageURL,
			"patch_notes": decision.PatchNotes,
			"checksum":    decision.Checksum,
			"signature":   decision.Signature,
		})
	}
}

// handleValidateChecksum answers POST /v1/validate-checksum. A mismatch is a
// successful call with is_valid false; only unknown builds and storage
// failures are errors.
func (s *Server) handleValidateChecksum(c *gin.Context) {
	var req validateChecksumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "build_id and checksum are required")

		return
	}

	result, err := s.service.ValidateChecksum(c.Request.Context(), req.BuildID, req.Checksum)

	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":   "error",
			"is_valid": false,
			"message":  msgBuildNotFound,
		})
	case errors.Is(err, artifact.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":   "error",
			"is_valid": false,
			"message":  msgPackageNotFound,
		})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"is_valid": result.IsValid,
			"message":  result.Message,
		})
	}
}

// handleListBuilds answers GET /v1/builds with the ordered registry document.
func (s *Server) handleListBuilds(c *gin.Context) {
	doc, err := s.service.ListBuilds(c.Request.Context())
	if err != nil {
		internalError(c, err)

		return
	}

	c.JSON(http.StatusOK, doc)
}

// handleGetBuild answers GET /v1/builds/:build_id.
func (s *Server) handleGetBuild(c *gin.Context) {
	rec, err := s.service.GetBuild(c.Request.Context(), c.Param("build_id"))

	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": msgBuildNotFound,
		})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, rec)
	}
}

// handlePackageChecksum answers GET /v1/checksum/:filename with a signed digest.
func (s *Server) handlePackageChecksum(c *gin.Context) {
	info, err := s.service.PackageChecksum(c.Request.Context(), c.Param("filename"))

	switch {
	case errors.Is(err, artifact.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": msgPackageNotFound,
		})
	case err != nil:
		internalError(c, err)
	default:
		c.JSON(http.StatusOK, gin.H{
			"filename":  info.Filename,
			"checksum":  info.Checksum,
			"signature": info.Signature,
		})
	}
}

// handlePublicKey answers GET /v1/public-key with the verification key PEM.
func (s *Server) handlePublicKey(c *gin.Context) {
	pemText, err := s.service.PublicKeyPEM(c.Request.Context())
	if err != nil {
		internalError(c, err)

		return
	}

	c.Data(http.StatusOK, "application/x-pem-file", []byte(pemText))
}

// handleDownloadPackage answers GET /packages/:filename with raw bytes.
func (s *Server) handleDownloadPackage(c *gin.Context) {
	f, err := s.service.OpenPackage(c.Request.Context(), c.Param("filename"))

	switch {
	case errors.Is(err, artifact.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": msgPackageNotFound,
		})

		return
	case err != nil:
		badRequest(c, "invalid package filename")

		return
	}

	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		internalError(c, err)

		return
	}

	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

// badRequest writes a uniform 400 response.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status":  "error",
		"message": message,
	})
}

// internalError logs the failure and writes a generic 500 response. Storage
// details never reach the client.
func internalError(c *gin.Context, err error) {
	logger.Errorf(c.Request.Context(), "Request failed: %v", err)

	c.JSON(http.StatusInternalServerError, gin.H{
		"status":  "error",
		"message": "Internal server error",
	})
}
