package models

// RenderRequest is the body of POST /render. Subtitles points at an SRT
// resource; SubtitlesText carries the track inline instead. Exactly one of
// the two must be set.
type RenderRequest struct {
	Images        []string `json:"images" binding:"required,min=1"`
	Audio         string   `json:"audio" binding:"required"`
	Subtitles     string   `json:"subtitles"`
	SubtitlesText string   `json:"subtitles_text"`
	OutputName    string   `json:"output_name"`
	Folder        string   `json:"folder"`
}

// RenderResponse is sent back once the video is published.
type RenderResponse struct {
	Status   string  `json:"status"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Expires  int64   `json:"expires,omitempty"`
}

// ErrorResponse is the uniform failure body. Kind is the machine-readable
// failure class; Detail carries encoder diagnostics when there are any.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}
