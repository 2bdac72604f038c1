package render

import (
	"fmt"
	"strconv"
)

// Encoder stage names, also used as the stage tag on EncodeError.
const (
	StageSlideshow = "slideshow"
	StageMux       = "mux"
)

// Command is one fully assembled encoder invocation: argument list, text to
// pipe on stdin, and the artifact path the invocation writes.
type Command struct {
	Args   []string
	Stdin  string
	Output string
}

// slideshowCommand assembles the first stage: a silent video built from the
// concat list piped on stdin, rendered at a fixed frame rate. The protocol
// whitelist covers the piped list plus local files, widened to HTTP when
// the list may reference remote images directly.
func slideshowCommand(listText string, fps int, allowRemote bool, outPath string) Command {
	whitelist := "pipe,file"
	if allowRemote {
		whitelist += ",http,https,tcp,tls"
	}
	return Command{
		Args: []string{
			"-y",
			"-f", "concat",
			"-safe", "0",
			"-protocol_whitelist", whitelist,
			"-i", "-",
			"-vf", fmt.Sprintf("fps=%d", fps),
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			outPath,
		},
		Stdin:  listText,
		Output: outPath,
	}
}

// muxCommand assembles the second stage: the silent slideshow combined with
// the audio track, subtitles burned in from a local file, and the output
// capped at targetDuration so video and audio end together.
func muxCommand(videoPath, audioLocator, subtitlePath string, targetDuration float64, outPath string) Command {
	return Command{
		Args: []string{
			"-y",
			"-i", videoPath,
			"-i", audioLocator,
			"-vf", "subtitles=" + subtitlePath,
			"-t", strconv.FormatFloat(targetDuration, 'f', -1, 64),
			"-c:v", "libx264",
			"-c:a", "aac",
			"-strict", "experimental",
			"-b:a", "192k",
			outPath,
		},
		Output: outPath,
	}
}
