package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"slideshow-renderer/config"
	"slideshow-renderer/publish"
	"slideshow-renderer/render"
	"slideshow-renderer/slideshow"
	"slideshow-renderer/staging"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one slideshow video and exit",
	Long: `Render assembles a single video from local or remote inputs without
starting the HTTP service. Images come from --images (a directory, ordered
by filename) or repeated --image flags (in the order given).`,
	RunE: runRender,
}

var (
	imagesDir  string
	imageFlags []string
	audioFlag  string
	subsFlag   string
	outputFlag string
	bufferFlag float64
	fpsFlag    int
)

func init() {
	renderCmd.Flags().StringVar(&imagesDir, "images", "", "directory of images, ordered by filename")
	renderCmd.Flags().StringArrayVar(&imageFlags, "image", nil, "image file or URL, repeatable, in slideshow order")
	renderCmd.Flags().StringVarP(&audioFlag, "audio", "a", "", "audio file or URL")
	renderCmd.Flags().StringVarP(&subsFlag, "subtitles", "s", "", "SRT subtitle file or URL")
	renderCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output video path (default: ./slideshow_<unix>.mp4)")
	renderCmd.Flags().Float64Var(&bufferFlag, "buffer", 5, "seconds the final image outlives the last cue")
	renderCmd.Flags().IntVar(&fpsFlag, "fps", 30, "output frame rate")
	renderCmd.MarkFlagRequired("audio")
	renderCmd.MarkFlagRequired("subtitles")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	images := append([]string(nil), imageFlags...)
	if imagesDir != "" {
		discovered, err := slideshow.SortedImages(imagesDir)
		if err != nil {
			return err
		}
		images = append(images, discovered...)
	}
	if len(images) == 0 {
		return fmt.Errorf("no images: pass --images or --image")
	}

	cfg := config.LoadConfig()

	outDir := "."
	name := ""
	if outputFlag != "" {
		abs, err := filepath.Abs(outputFlag)
		if err != nil {
			return err
		}
		outDir = filepath.Dir(abs)
		name = strings.TrimSuffix(filepath.Base(abs), ".mp4")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// No BaseURL: the locator that comes back is the output path itself.
	store := publish.NewStore(outDir, "", "", 0)
	fetcher := staging.NewHTTPFetcher(cfg.FetchTimeout, cfg.FetchRatePerSec)
	pipeline := render.NewPipeline(fetcher, render.NewFFmpeg(cfg.FFmpegBin), store, render.Options{
		StagingDir:     cfg.StagingDir,
		TrailingBuffer: bufferFlag,
		FrameRate:      fpsFlag,
		EncodeTimeout:  cfg.EncodeTimeout,
		MaxFetches:     cfg.MaxFetches,
	})

	result, err := pipeline.Render(ctx, render.Request{
		Images:     images,
		Audio:      audioFlag,
		Subtitles:  subsFlag,
		OutputName: name,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Rendered %s (%.2fs)\n", result.Locator.URL, result.TargetDuration)
	return nil
}
