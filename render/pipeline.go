// Package render orchestrates one slideshow request end to end: subtitle
// decode and parse, duration allocation, input staging, the two encoder
// stages, and publication of the final video.
package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slideshow-renderer/publish"
	"slideshow-renderer/slideshow"
	"slideshow-renderer/staging"
	"slideshow-renderer/subtitle"
)

// Request carries everything a single render needs. Exactly one of
// Subtitles (a locator) and SubtitlesText (inline SRT) should be set; when
// both are, the inline text wins.
type Request struct {
	Images        []string
	Audio         string
	Subtitles     string
	SubtitlesText string
	OutputName    string
	Folder        string
}

// Result is a finished render: where the video went and how long it runs.
type Result struct {
	Locator        publish.Locator
	TargetDuration float64
}

// Plan is the fully resolved unit of work for one render: every input
// pinned to the locator the encoder will read, every duration decided.
// Built once after staging, then only consumed.
type Plan struct {
	Slots          []slideshow.ImageSlot
	Audio          string
	Subtitle       string
	Output         publish.Destination
	TargetDuration float64
}

// Options tune a Pipeline. Zero values fall back to the defaults the
// original pipeline shipped with.
type Options struct {
	StagingDir        string
	TrailingBuffer    float64
	FrameRate         int
	EncodeTimeout     time.Duration
	AllowRemoteInputs bool
	MaxFetches        int
}

// Pipeline renders slideshow requests. Collaborators are injected once at
// construction; per-request state lives in a working area created and torn
// down inside Render, so one Pipeline serves concurrent requests.
type Pipeline struct {
	fetcher   staging.Fetcher
	runner    Runner
	publisher publish.Publisher
	opts      Options
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(fetcher staging.Fetcher, runner Runner, publisher publish.Publisher, opts Options) *Pipeline {
	if opts.StagingDir == "" {
		opts.StagingDir = "staging"
	}
	if opts.TrailingBuffer <= 0 {
		opts.TrailingBuffer = 5
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	if opts.EncodeTimeout <= 0 {
		opts.EncodeTimeout = 5 * time.Minute
	}
	if opts.MaxFetches <= 0 {
		opts.MaxFetches = 4
	}
	return &Pipeline{fetcher: fetcher, runner: runner, publisher: publisher, opts: opts}
}

// Render runs the full pipeline for one request. Whatever happens, the
// request's working area is removed before Render returns; published
// videos live in the publisher's keeping, never in the area.
func (p *Pipeline) Render(ctx context.Context, req Request) (Result, error) {
	if len(req.Images) == 0 {
		return Result{}, slideshow.ErrNoImages
	}

	area, err := staging.NewArea(p.opts.StagingDir, p.fetcher)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := area.Cleanup(); err != nil {
			log.Printf("[%s] Error cleaning working area: %v", area.ID(), err)
		}
	}()

	log.Printf("[%s] Render started: %d images, audio %s", area.ID(), len(req.Images), req.Audio)

	subtitlePath, text, err := p.stageSubtitles(ctx, area, req)
	if err != nil {
		return Result{}, err
	}

	timeline, err := subtitle.ParseTimeline(text)
	if err != nil {
		return Result{}, err
	}
	durations, targetDuration, err := slideshow.Allocate(timeline, len(req.Images), p.opts.TrailingBuffer)
	if err != nil {
		return Result{}, err
	}
	log.Printf("[%s] Parsed %d cues, target duration %.2fs", area.ID(), len(timeline.Cues), targetDuration)

	imagePaths, err := p.stageImages(ctx, area, req.Images)
	if err != nil {
		return Result{}, err
	}
	audioLocator, err := p.stageAudio(ctx, area, req.Audio)
	if err != nil {
		return Result{}, err
	}

	slots, err := slideshow.BuildSlots(imagePaths, durations)
	if err != nil {
		return Result{}, err
	}
	plan := Plan{
		Slots:          slots,
		Audio:          audioLocator,
		Subtitle:       subtitlePath,
		Output:         publish.Destination{Folder: req.Folder, Name: req.OutputName},
		TargetDuration: targetDuration,
	}

	final, err := p.encode(ctx, area, plan)
	if err != nil {
		return Result{}, err
	}

	locator, err := p.publisher.Publish(ctx, final, plan.Output)
	if err != nil {
		return Result{}, err
	}
	log.Printf("[%s] Published %s", area.ID(), locator.URL)

	return Result{Locator: locator, TargetDuration: plan.TargetDuration}, nil
}

// encode runs the two encoder stages against a plan inside the working
// area and returns the finished file, still inside the area.
func (p *Pipeline) encode(ctx context.Context, area *staging.Area, plan Plan) (string, error) {
	intermediate := area.Path("slideshow.mp4")
	cmd := slideshowCommand(slideshow.ConcatList(plan.Slots), p.opts.FrameRate, p.opts.AllowRemoteInputs, intermediate)
	if err := p.run(ctx, StageSlideshow, cmd); err != nil {
		return "", err
	}
	if err := verifyArtifact(intermediate); err != nil {
		return "", &EncodeError{Stage: StageSlideshow, Err: err}
	}
	log.Printf("[%s] Slideshow stage complete", area.ID())

	final := area.Path("final.mp4")
	if err := p.run(ctx, StageMux, muxCommand(intermediate, plan.Audio, plan.Subtitle, plan.TargetDuration, final)); err != nil {
		return "", err
	}
	log.Printf("[%s] Mux stage complete", area.ID())
	return final, nil
}

// stageSubtitles lands the subtitle track as a plain UTF-8 file inside the
// working area, since the burn-in filter reads local files only, and returns
// its path along with the decoded text for parsing. Inline text skips the
// fetch; locators are read and decoded first.
func (p *Pipeline) stageSubtitles(ctx context.Context, area *staging.Area, req Request) (string, string, error) {
	text := req.SubtitlesText
	if text == "" {
		path, err := area.Stage(ctx, req.Subtitles, "subtitles_raw.srt")
		if err != nil {
			return "", "", err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", "", &staging.ResourceError{Locator: req.Subtitles, Err: err}
		}
		text, err = subtitle.DecodeTrack(raw)
		if err != nil {
			return "", "", err
		}
	}
	path, err := area.WriteFile("subtitles.srt", []byte(text))
	if err != nil {
		return "", "", err
	}
	return path, text, nil
}

// stageImages resolves image locators to what the concat list will carry:
// staged local copies normally, or the remote URLs themselves when the
// encoder is allowed to fetch its own inputs.
func (p *Pipeline) stageImages(ctx context.Context, area *staging.Area, locators []string) ([]string, error) {
	if p.opts.AllowRemoteInputs {
		paths := make([]string, len(locators))
		for i, locator := range locators {
			if staging.IsRemote(locator) {
				paths[i] = locator
				continue
			}
			path, err := area.Stage(ctx, locator, "")
			if err != nil {
				return nil, err
			}
			paths[i] = path
		}
		return paths, nil
	}
	return area.StageAll(ctx, locators, func(i int, locator string) string {
		return fmt.Sprintf("image_%d%s", i, extOf(locator, ".jpg"))
	}, p.opts.MaxFetches)
}

func (p *Pipeline) stageAudio(ctx context.Context, area *staging.Area, locator string) (string, error) {
	if p.opts.AllowRemoteInputs && staging.IsRemote(locator) {
		return locator, nil
	}
	return area.Stage(ctx, locator, "audio"+extOf(locator, ".mp3"))
}

// run executes one encoder stage under the configured deadline and folds
// failures into EncodeError.
func (p *Pipeline) run(ctx context.Context, stage string, cmd Command) error {
	runCtx, cancel := context.WithTimeout(ctx, p.opts.EncodeTimeout)
	defer cancel()

	stderr, err := p.runner.Run(runCtx, cmd)
	if err == nil {
		return nil
	}
	return &EncodeError{
		Stage:   stage,
		Stderr:  stderr,
		Timeout: errors.Is(runCtx.Err(), context.DeadlineExceeded),
		Err:     err,
	}
}

// verifyArtifact confirms a stage actually produced output before the next
// stage consumes it. ffmpeg can exit zero with nothing written when inputs
// collapse to zero frames.
func verifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("artifact %s is empty", filepath.Base(path))
	}
	return nil
}

// extOf pulls a usable file extension out of a locator, ignoring any query
// string, falling back when the locator carries none.
func extOf(locator, fallback string) string {
	trimmed := locator
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	ext := strings.ToLower(filepath.Ext(trimmed))
	if ext == "" || ext == "." {
		return fallback
	}
	return ext
}
