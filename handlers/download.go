package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"slideshow-renderer/models"
	"slideshow-renderer/publish"

	"github.com/gin-gonic/gin"
)

// DownloadHandler serves a published video addressed by its signed token
func (h *HandlerContext) DownloadHandler(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "token parameter is required",
			Kind:  "bad_request",
		})
		return
	}

	path, err := h.Store.Resolve(token)
	if err != nil {
		kind := "invalid_token"
		if errors.Is(err, publish.ErrLinkExpired) {
			kind = "link_expired"
		}
		c.JSON(http.StatusGone, models.ErrorResponse{Error: err.Error(), Kind: kind})
		return
	}

	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "File no longer available",
			Kind:  "not_found",
		})
		return
	}

	filename := filepath.Base(path)
	c.Header("X-Filename", url.QueryEscape(filename))
	c.FileAttachment(path, filename)
}
