package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slideshow-renderer",
	Short: "Assemble subtitle-timed slideshow videos with ffmpeg",
	Long: `Slideshow-renderer turns a set of images, an audio track and an SRT
subtitle file into a finished video: each image is shown for the span of its
share of subtitle cues, the audio is muxed underneath, and the subtitles are
burned in. Run it as an HTTP service (serve) or as a one-shot command
(render).`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
