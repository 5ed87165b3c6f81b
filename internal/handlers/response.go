package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/vidtube/internal/middleware"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/services"
	"github.com/vidtube/vidtube/pkg/apperror"
)

// respondError maps a service error onto its status code. The cause is
// attached to the gin context for the request logger and never sent back.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apperror.HTTPStatus(err), gin.H{"error": apperror.PublicMessage(err)})
}

// requireUser reads the authenticated user id, answering 401 when it is
// missing.
func requireUser(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	return userID, true
}

func pageOptions(c *gin.Context, limits readmodel.Limits) (readmodel.Options, bool) {
	opts, err := limits.ParseOptions(c.Query("page"), c.Query("limit"), c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return readmodel.Options{}, false
	}
	return opts, true
}

// formFile opens an uploaded part. A missing optional part yields (nil, nil).
// The returned close func is always safe to call.
func formFile(c *gin.Context, field string, required bool) (*services.FileUpload, func(), error) {
	noop := func() {}

	header, err := c.FormFile(field)
	if err == http.ErrMissingFile {
		if required {
			return nil, noop, apperror.InvalidArgument(field + " is required")
		}
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, apperror.Wrap(apperror.KindInvalidArgument, "invalid "+field+" upload", err)
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, apperror.Wrap(apperror.KindInvalidArgument, "failed to read "+field, err)
	}
	return uploadFrom(header, file), func() { file.Close() }, nil
}

func uploadFrom(header *multipart.FileHeader, file multipart.File) *services.FileUpload {
	return &services.FileUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	}
}
