package handlers

import (
	"errors"
	"net/http"

	"slideshow-renderer/publish"
	"slideshow-renderer/render"
	"slideshow-renderer/slideshow"
	"slideshow-renderer/staging"
	"slideshow-renderer/subtitle"
)

// classify maps a pipeline failure to its HTTP status and machine-readable
// kind. Input problems are the client's fault, unreachable resources are the
// origin's, everything else is ours.
func classify(err error) (int, string) {
	var (
		resErr *staging.ResourceError
		encErr *render.EncodeError
		upErr  *publish.UploadError
	)
	switch {
	case errors.Is(err, subtitle.ErrEmptyTimeline):
		return http.StatusBadRequest, "empty_timeline"
	case errors.Is(err, subtitle.ErrMalformedTrack):
		return http.StatusBadRequest, "malformed_track"
	case errors.Is(err, slideshow.ErrNoImages):
		return http.StatusBadRequest, "no_images"
	case errors.As(err, &resErr):
		return http.StatusBadGateway, "resource_unavailable"
	case errors.As(err, &encErr):
		if encErr.Timeout {
			return http.StatusGatewayTimeout, "encode_timeout"
		}
		return http.StatusInternalServerError, "encode_failed"
	case errors.As(err, &upErr):
		return http.StatusInternalServerError, "upload_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// detailOf surfaces encoder diagnostics to the client; other failures carry
// no detail beyond their message.
func detailOf(err error) string {
	var encErr *render.EncodeError
	if errors.As(err, &encErr) {
		return encErr.Stderr
	}
	return ""
}
