package handlers

import (
	"net/http"

	"slideshow-renderer/config"
	"slideshow-renderer/models"
	"slideshow-renderer/publish"
	"slideshow-renderer/render"

	"github.com/gin-gonic/gin"
)

// HandlerContext holds dependencies for handlers
type HandlerContext struct {
	Config   *config.AppConfig
	Pipeline *render.Pipeline
	Store    *publish.Store
}

// RenderHandler runs the slideshow pipeline for one request
func (h *HandlerContext) RenderHandler(c *gin.Context) {
	var req models.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid request: " + err.Error(),
			Kind:  "bad_request",
		})
		return
	}
	if (req.Subtitles == "") == (req.SubtitlesText == "") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Provide exactly one of subtitles or subtitles_text",
			Kind:  "bad_request",
		})
		return
	}

	result, err := h.Pipeline.Render(c.Request.Context(), render.Request{
		Images:        req.Images,
		Audio:         req.Audio,
		Subtitles:     req.Subtitles,
		SubtitlesText: req.SubtitlesText,
		OutputName:    req.OutputName,
		Folder:        req.Folder,
	})
	if err != nil {
		status, kind := classify(err)
		c.JSON(status, models.ErrorResponse{
			Error:  err.Error(),
			Kind:   kind,
			Detail: detailOf(err),
		})
		return
	}

	c.JSON(http.StatusOK, models.RenderResponse{
		Status:   "success",
		URL:      result.Locator.URL,
		Duration: result.TargetDuration,
		Expires:  result.Locator.Expires,
	})
}
