package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"slideshow-renderer/publish"
	"slideshow-renderer/slideshow"
	"slideshow-renderer/staging"
	"slideshow-renderer/subtitle"
)

// scenarioTrack has three one-second cues ending at 6s: with three images
// and the default buffer it allocates [1 1 6] and targets 11s.
const scenarioTrack = `1
00:00:00,000 --> 00:00:01,000
one

2
00:00:02,000 --> 00:00:03,000
two

3
00:00:05,000 --> 00:00:06,000
three
`

type fakeRunner struct {
	mu           sync.Mutex
	commands     []Command
	failOn       int    // 1-based invocation index that fails; 0 = never
	stderr       string // stderr reported by the failing invocation
	block        bool   // park until ctx expires instead of running
	skipArtifact bool   // succeed without writing the output file
	subtitleText string // contents of the burn-in file, captured at mux time
}

func (r *fakeRunner) Run(ctx context.Context, cmd Command) (string, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	n := len(r.commands)
	for _, arg := range cmd.Args {
		if strings.HasPrefix(arg, "subtitles=") {
			if data, err := os.ReadFile(strings.TrimPrefix(arg, "subtitles=")); err == nil {
				r.subtitleText = string(data)
			}
		}
	}
	r.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return r.stderr, ctx.Err()
	}
	if r.failOn == n {
		return r.stderr, errors.New("exit status 1")
	}
	if !r.skipArtifact {
		if err := os.WriteFile(cmd.Output, []byte("artifact"), 0o644); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (r *fakeRunner) calls() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

type fakePublisher struct {
	mu          sync.Mutex
	published   int
	file        string
	dest        publish.Destination
	fileExisted bool
	loc         publish.Locator
	err         error
}

func (f *fakePublisher) Publish(ctx context.Context, file string, dest publish.Destination) (publish.Locator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published++
	f.file = file
	f.dest = dest
	if _, err := os.Stat(file); err == nil {
		f.fileExisted = true
	}
	if f.err != nil {
		return publish.Locator{}, f.err
	}
	return f.loc, nil
}

type stubFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	payload map[string]string
}

func newStubFetcher(payload map[string]string) *stubFetcher {
	return &stubFetcher{calls: make(map[string]int), payload: payload}
}

func (f *stubFetcher) Fetch(ctx context.Context, uri string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[uri]++
	body, ok := f.payload[uri]
	if !ok {
		return nil, fmt.Errorf("no payload for %s", uri)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *stubFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

func localRequest(t *testing.T) Request {
	t.Helper()
	dir := t.TempDir()
	return Request{
		Images: []string{
			writeInput(t, dir, "a.jpg", "img"),
			writeInput(t, dir, "b.jpg", "img"),
			writeInput(t, dir, "c.jpg", "img"),
		},
		Audio:         writeInput(t, dir, "voice.mp3", "mp3"),
		SubtitlesText: scenarioTrack,
	}
}

func assertRootEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging root holds %d entries after render, want none", len(entries))
	}
}

func TestRenderSuccess(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{}
	publisher := &fakePublisher{loc: publish.Locator{URL: "http://localhost:3021/download?token=abc", Expires: 99}}
	pipeline := NewPipeline(nil, runner, publisher, Options{StagingDir: root})

	req := localRequest(t)
	req.OutputName = "clip"
	req.Folder = "batch"

	result, err := pipeline.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result.TargetDuration != 11 {
		t.Errorf("TargetDuration = %v, want 11", result.TargetDuration)
	}
	if result.Locator != publisher.loc {
		t.Errorf("Locator = %+v, want %+v", result.Locator, publisher.loc)
	}

	commands := runner.calls()
	if len(commands) != 2 {
		t.Fatalf("runner saw %d commands, want 2", len(commands))
	}

	// Stage 1: the concat list references the caller's local files in
	// order, with the buffer folded into the last duration.
	wantList := fmt.Sprintf(
		"file '%s'\nduration 1\nfile '%s'\nduration 1\nfile '%s'\nduration 6\n",
		req.Images[0], req.Images[1], req.Images[2],
	)
	if commands[0].Stdin != wantList {
		t.Errorf("concat list = %q, want %q", commands[0].Stdin, wantList)
	}
	if !strings.HasSuffix(commands[0].Output, "slideshow.mp4") {
		t.Errorf("stage 1 output = %q", commands[0].Output)
	}
	wantArgs := []string{
		"-y", "-f", "concat", "-safe", "0",
		"-protocol_whitelist", "pipe,file",
		"-i", "-",
		"-vf", "fps=30",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		commands[0].Output,
	}
	if !reflect.DeepEqual(commands[0].Args, wantArgs) {
		t.Errorf("stage 1 args = %v, want %v", commands[0].Args, wantArgs)
	}

	// Stage 2: silent video + caller audio + staged subtitles, trimmed to
	// the target duration.
	mux := commands[1]
	if mux.Args[2] != commands[0].Output {
		t.Errorf("mux video input = %q, want stage 1 output", mux.Args[2])
	}
	if mux.Args[4] != req.Audio {
		t.Errorf("mux audio input = %q, want %q", mux.Args[4], req.Audio)
	}
	if !strings.HasPrefix(mux.Args[6], "subtitles=") || !strings.HasSuffix(mux.Args[6], "subtitles.srt") {
		t.Errorf("mux subtitle filter = %q", mux.Args[6])
	}
	if mux.Args[7] != "-t" || mux.Args[8] != "11" {
		t.Errorf("mux trim args = %v", mux.Args[7:9])
	}
	if runner.subtitleText != scenarioTrack {
		t.Errorf("burn-in file content = %q, want the request text", runner.subtitleText)
	}

	if publisher.published != 1 {
		t.Fatalf("publisher called %d times, want 1", publisher.published)
	}
	if !publisher.fileExisted {
		t.Error("final artifact missing at publish time")
	}
	if !strings.HasSuffix(publisher.file, "final.mp4") {
		t.Errorf("published file = %q", publisher.file)
	}
	if publisher.dest != (publish.Destination{Folder: "batch", Name: "clip"}) {
		t.Errorf("destination = %+v", publisher.dest)
	}

	assertRootEmpty(t, root)
}

func TestRenderNoImages(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{}
	pipeline := NewPipeline(nil, runner, &fakePublisher{}, Options{StagingDir: root})

	_, err := pipeline.Render(context.Background(), Request{SubtitlesText: scenarioTrack, Audio: "x.mp3"})
	if !errors.Is(err, slideshow.ErrNoImages) {
		t.Fatalf("error = %v, want ErrNoImages", err)
	}
	if len(runner.calls()) != 0 {
		t.Error("encoder invoked despite missing images")
	}
	assertRootEmpty(t, root)
}

func TestRenderEmptyTimeline(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{}
	pipeline := NewPipeline(nil, runner, &fakePublisher{}, Options{StagingDir: root})

	req := localRequest(t)
	req.SubtitlesText = "no cues in here\n"

	_, err := pipeline.Render(context.Background(), req)
	if !errors.Is(err, subtitle.ErrEmptyTimeline) {
		t.Fatalf("error = %v, want ErrEmptyTimeline", err)
	}
	if len(runner.calls()) != 0 {
		t.Error("encoder invoked despite empty timeline")
	}
	assertRootEmpty(t, root)
}

func TestRenderMalformedTrack(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{}
	pipeline := NewPipeline(nil, runner, &fakePublisher{}, Options{StagingDir: root})

	req := localRequest(t)
	req.SubtitlesText = ""
	dir := t.TempDir()
	badFile := filepath.Join(dir, "bad.srt")
	if err := os.WriteFile(badFile, []byte{0xC3, 0x28, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	req.Subtitles = badFile

	_, err := pipeline.Render(context.Background(), req)
	if !errors.Is(err, subtitle.ErrMalformedTrack) {
		t.Fatalf("error = %v, want ErrMalformedTrack", err)
	}
	if len(runner.calls()) != 0 {
		t.Error("encoder invoked despite malformed track")
	}
	assertRootEmpty(t, root)
}

func TestRenderMissingResource(t *testing.T) {
	root := t.TempDir()
	pipeline := NewPipeline(nil, &fakeRunner{}, &fakePublisher{}, Options{StagingDir: root})

	req := localRequest(t)
	req.Images[1] = filepath.Join(t.TempDir(), "absent.jpg")

	_, err := pipeline.Render(context.Background(), req)
	var resErr *staging.ResourceError
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v, want *staging.ResourceError", err)
	}
	assertRootEmpty(t, root)
}

func TestRenderStageOneFails(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{failOn: 1, stderr: "concat: invalid entry"}
	publisher := &fakePublisher{}
	pipeline := NewPipeline(nil, runner, publisher, Options{StagingDir: root})

	_, err := pipeline.Render(context.Background(), localRequest(t))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %v, want *EncodeError", err)
	}
	if encErr.Stage != StageSlideshow {
		t.Errorf("Stage = %q, want %q", encErr.Stage, StageSlideshow)
	}
	if encErr.Stderr != "concat: invalid entry" {
		t.Errorf("Stderr = %q", encErr.Stderr)
	}
	if encErr.Timeout {
		t.Error("Timeout = true for a plain failure")
	}
	if len(runner.calls()) != 1 {
		t.Errorf("runner saw %d commands, want 1", len(runner.calls()))
	}
	if publisher.published != 0 {
		t.Error("publisher called after a failed encode")
	}
	assertRootEmpty(t, root)
}

func TestRenderStageTwoFails(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{failOn: 2, stderr: "aac: boom"}
	publisher := &fakePublisher{}
	pipeline := NewPipeline(nil, runner, publisher, Options{StagingDir: root})

	_, err := pipeline.Render(context.Background(), localRequest(t))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %v, want *EncodeError", err)
	}
	if encErr.Stage != StageMux {
		t.Errorf("Stage = %q, want %q", encErr.Stage, StageMux)
	}
	if publisher.published != 0 {
		t.Error("publisher called after a failed mux")
	}
	assertRootEmpty(t, root)
}

func TestRenderEmptyArtifact(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{skipArtifact: true}
	pipeline := NewPipeline(nil, runner, &fakePublisher{}, Options{StagingDir: root})

	_, err := pipeline.Render(context.Background(), localRequest(t))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %v, want *EncodeError", err)
	}
	if encErr.Stage != StageSlideshow {
		t.Errorf("Stage = %q, want %q", encErr.Stage, StageSlideshow)
	}
	if len(runner.calls()) != 1 {
		t.Errorf("runner saw %d commands, want stage 2 skipped", len(runner.calls()))
	}
	assertRootEmpty(t, root)
}

func TestRenderTimeout(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{block: true}
	pipeline := NewPipeline(nil, runner, &fakePublisher{}, Options{
		StagingDir:    root,
		EncodeTimeout: 50 * time.Millisecond,
	})

	_, err := pipeline.Render(context.Background(), localRequest(t))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %v, want *EncodeError", err)
	}
	if !encErr.Timeout {
		t.Error("Timeout = false after deadline hit")
	}
	if encErr.Stage != StageSlideshow {
		t.Errorf("Stage = %q, want %q", encErr.Stage, StageSlideshow)
	}
	assertRootEmpty(t, root)
}

func TestRenderPublishFails(t *testing.T) {
	root := t.TempDir()
	pubErr := &publish.UploadError{Path: "final.mp4", Err: errors.New("disk full")}
	publisher := &fakePublisher{err: pubErr}
	pipeline := NewPipeline(nil, &fakeRunner{}, publisher, Options{StagingDir: root})

	_, err := pipeline.Render(context.Background(), localRequest(t))
	var upErr *publish.UploadError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want *publish.UploadError", err)
	}
	assertRootEmpty(t, root)
}

func TestRenderStagesRemoteInputs(t *testing.T) {
	root := t.TempDir()
	fetcher := newStubFetcher(map[string]string{
		"https://cdn.example/0.jpg":           "img0",
		"https://cdn.example/1.png":           "img1",
		"https://cdn.example/voice.mp3?sig=x": "mp3",
		"https://cdn.example/track.srt":       scenarioTrack,
	})
	runner := &fakeRunner{}
	pipeline := NewPipeline(fetcher, runner, &fakePublisher{}, Options{StagingDir: root})

	req := Request{
		Images:    []string{"https://cdn.example/0.jpg", "https://cdn.example/1.png"},
		Audio:     "https://cdn.example/voice.mp3?sig=x",
		Subtitles: "https://cdn.example/track.srt",
	}
	if _, err := pipeline.Render(context.Background(), req); err != nil {
		t.Fatalf("render: %v", err)
	}

	commands := runner.calls()
	if len(commands) != 2 {
		t.Fatalf("runner saw %d commands, want 2", len(commands))
	}
	list := commands[0].Stdin
	if strings.Contains(list, "https://") {
		t.Errorf("concat list references remote locators: %q", list)
	}
	if !strings.Contains(list, "image_0.jpg") || !strings.Contains(list, "image_1.png") {
		t.Errorf("concat list missing staged names: %q", list)
	}
	if audio := commands[1].Args[4]; staging.IsRemote(audio) || !strings.HasSuffix(audio, "audio.mp3") {
		t.Errorf("mux audio input = %q, want staged copy", audio)
	}
	if fetcher.total() != 4 {
		t.Errorf("fetch count = %d, want 4 (two images, audio, subtitles)", fetcher.total())
	}
	assertRootEmpty(t, root)
}

func TestRenderAllowRemotePassthrough(t *testing.T) {
	root := t.TempDir()
	fetcher := newStubFetcher(map[string]string{
		"https://cdn.example/track.srt": scenarioTrack,
	})
	runner := &fakeRunner{}
	pipeline := NewPipeline(fetcher, runner, &fakePublisher{}, Options{
		StagingDir:        root,
		AllowRemoteInputs: true,
	})

	localImage := writeInput(t, t.TempDir(), "local.jpg", "img")
	req := Request{
		Images:    []string{"https://cdn.example/0.jpg", localImage, "https://cdn.example/2.jpg"},
		Audio:     "https://cdn.example/voice.mp3",
		Subtitles: "https://cdn.example/track.srt",
	}
	if _, err := pipeline.Render(context.Background(), req); err != nil {
		t.Fatalf("render: %v", err)
	}

	commands := runner.calls()
	if len(commands) != 2 {
		t.Fatalf("runner saw %d commands, want 2", len(commands))
	}

	wantList := fmt.Sprintf(
		"file 'https://cdn.example/0.jpg'\nduration 1\nfile '%s'\nduration 1\nfile 'https://cdn.example/2.jpg'\nduration 6\n",
		localImage,
	)
	if commands[0].Stdin != wantList {
		t.Errorf("concat list = %q, want %q", commands[0].Stdin, wantList)
	}
	whitelist := commands[0].Args[6]
	if whitelist != "pipe,file,http,https,tcp,tls" {
		t.Errorf("protocol whitelist = %q", whitelist)
	}
	if audio := commands[1].Args[4]; audio != "https://cdn.example/voice.mp3" {
		t.Errorf("mux audio input = %q, want the remote locator", audio)
	}
	// The burn-in filter cannot read remote locators, so subtitles stage
	// locally even in passthrough mode.
	if sub := commands[1].Args[6]; !strings.HasSuffix(sub, "subtitles.srt") || strings.Contains(sub, "https://") {
		t.Errorf("subtitle filter = %q, want staged local file", sub)
	}
	if fetcher.total() != 1 {
		t.Errorf("fetch count = %d, want 1 (subtitles only)", fetcher.total())
	}
	assertRootEmpty(t, root)
}

func TestRenderCanceledContext(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{block: true}
	pipeline := NewPipeline(nil, runner, &fakePublisher{}, Options{StagingDir: root})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := pipeline.Render(ctx, localRequest(t))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %v, want *EncodeError", err)
	}
	if encErr.Timeout {
		t.Error("cancellation reported as timeout")
	}
	assertRootEmpty(t, root)
}

func TestExtOf(t *testing.T) {
	tests := []struct {
		locator string
		want    string
	}{
		{"https://cdn.example/a.JPG", ".jpg"},
		{"https://cdn.example/a.png?sig=abc", ".png"},
		{"https://cdn.example/plain", ".jpg"},
		{"/data/voice.ogg", ".ogg"},
	}
	for _, tt := range tests {
		if got := extOf(tt.locator, ".jpg"); got != tt.want {
			t.Errorf("extOf(%q) = %q, want %q", tt.locator, got, tt.want)
		}
	}
}
