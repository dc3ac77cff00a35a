package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bgm-radar/internal/config"
	"bgm-radar/internal/container"
	"bgm-radar/internal/filter"
	"bgm-radar/internal/keywords"
	"bgm-radar/internal/quota"
	"bgm-radar/internal/service"
	"bgm-radar/pkg/logger"
)

const usage = `Usage: collector <command> [flags]

Commands:
  collect              run the standard collection preset
  smart                size a run from the remaining quota
  enhanced             wide collection with channel-name searches
  track                snapshot every channel in tracking status
  enroll <channel-id>  start tracking one channel
  add [-force] <ref>   fetch, evaluate and store one channel by id or URL
  validate <ref>       evaluate one channel without storing it
  batches              list the tenant batches
  batch-collect <n>    collect for every tenant of batch n
  batch-track <n>      track for every tenant of batch n
  quota                show today's quota and a recommended plan

Collection flags:
  -months -min-subs -max-subs -min-videos -min-growth
  -keywords -videos -max-channels -strategy -keyword-list`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1], os.Args[2:], cfg, log, os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, command string, args []string, cfg *config.Config, log *logger.Logger, out io.Writer) int {
	switch command {
	case "collect", "smart", "enhanced":
		opts, err := parseRunOptions(config.Mode(command), args, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return withContainer(ctx, cfg, log, true, func(c *container.Container) (interface{}, error) {
			return c.Services.Collector.Run(ctx, opts)
		}, out)

	case "track":
		return withContainer(ctx, cfg, log, true, func(c *container.Container) (interface{}, error) {
			return c.Services.Tracker.UpdateAll(ctx)
		}, out)

	case "enroll":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "enroll requires exactly one channel id")
			return 1
		}
		return withContainer(ctx, cfg, log, true, func(c *container.Container) (interface{}, error) {
			return c.Services.Tracker.Enroll(ctx, args[0])
		}, out)

	case "add", "validate":
		ref, opts, err := parseIntake(command, args)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return withContainer(ctx, cfg, log, true, func(c *container.Container) (interface{}, error) {
			if command == "validate" {
				return c.Services.Intake.ValidateChannel(ctx, ref, opts.Admission)
			}
			return c.Services.Intake.AddChannel(ctx, ref, opts)
		}, out)

	case "batches":
		return withContainer(ctx, cfg, log, false, func(c *container.Container) (interface{}, error) {
			listing := make([][]string, 0)
			for _, batch := range c.Services.Batch.Batches() {
				ids := make([]string, 0, len(batch))
				for _, t := range batch {
					ids = append(ids, t.ID)
				}
				listing = append(listing, ids)
			}
			return listing, nil
		}, out)

	case "batch-collect", "batch-track":
		index, err := parseIndex(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return withContainer(ctx, cfg, log, false, func(c *container.Container) (interface{}, error) {
			if command == "batch-track" {
				return c.Services.Batch.TrackBatch(ctx, index)
			}
			return c.Services.Batch.RunBatch(ctx, index)
		}, out)

	case "quota":
		return withContainer(ctx, cfg, log, false, func(c *container.Container) (interface{}, error) {
			now := time.Now()
			return map[string]interface{}{
				"day":    quota.Day(now),
				"status": c.Quota.Status(now),
				"plan":   c.Quota.RecommendedParams(),
			}, nil
		}, out)
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s\n", command, usage)
	return 2
}

// withContainer builds the container, runs fn and prints its result as JSON.
func withContainer(ctx context.Context, cfg *config.Config, log *logger.Logger, needsYouTube bool, fn func(c *container.Container) (interface{}, error), out io.Writer) int {
	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to create container")
		return 1
	}
	defer c.Close()

	if needsYouTube {
		if err := c.RequireYouTube(); err != nil {
			log.WithError(err).Error("YouTube credential required")
			return 1
		}
	}

	result, err := fn(c)
	if err != nil {
		log.WithError(err).Error("Command failed")
		return 1
	}
	if err := printJSON(out, result); err != nil {
		log.WithError(err).Error("Failed to write result")
		return 1
	}
	return 0
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseRunOptions starts from the mode's preset and applies command-line overrides.
func parseRunOptions(mode config.Mode, args []string, cfg *config.Config) (service.RunOptions, error) {
	preset, err := config.PresetFor(mode)
	if err != nil {
		return service.RunOptions{}, err
	}

	fs := flag.NewFlagSet(string(mode), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	months := fs.Int("months", preset.Admission.MonthsThreshold, "maximum channel age in months")
	minSubs := fs.Int64("min-subs", preset.Admission.MinSubscribers, "minimum subscribers")
	maxSubs := fs.Int64("max-subs", preset.Admission.MaxSubscribers, "maximum subscribers")
	minVideos := fs.Int64("min-videos", preset.Admission.MinVideos, "minimum uploads")
	minGrowth := fs.Int("min-growth", preset.Admission.MinGrowthRate, "minimum subscribers per month")
	keywordCount := fs.Int("keywords", preset.KeywordCount, "keywords per run")
	videos := fs.Int("videos", preset.VideosPerKeyword, "results per keyword")
	maxChannels := fs.Int("max-channels", preset.MaxChannelsPerRun, "channels processed per run")
	strategy := fs.String("strategy", string(preset.Strategy), "keyword strategy: random, rotating or priority")
	keywordList := fs.String("keyword-list", "", "comma separated keywords, overrides the strategy")
	if err := fs.Parse(args); err != nil {
		return service.RunOptions{}, fmt.Errorf("invalid flags for %s: %w", mode, err)
	}

	preset.Admission.MonthsThreshold = *months
	preset.Admission.MinSubscribers = *minSubs
	preset.Admission.MaxSubscribers = *maxSubs
	preset.Admission.MinVideos = *minVideos
	preset.Admission.MinGrowthRate = *minGrowth
	preset.KeywordCount = *keywordCount
	preset.VideosPerKeyword = *videos
	preset.MaxChannelsPerRun = *maxChannels
	if preset.Strategy, err = keywords.ParseStrategy(*strategy); err != nil {
		return service.RunOptions{}, err
	}
	if cfg.ChannelSearch {
		preset.ChannelSearch = true
	}

	opts := service.RunOptionsFromPreset(preset)
	if *keywordList != "" {
		for _, kw := range strings.Split(*keywordList, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				opts.Keywords = append(opts.Keywords, kw)
			}
		}
	}
	if err := opts.Admission.Validate(); err != nil {
		return service.RunOptions{}, err
	}
	return opts, nil
}

// parseIntake reads the admission flags of add/validate and the channel reference after them.
func parseIntake(command string, args []string) (string, service.IntakeOptions, error) {
	preset, err := config.PresetFor(config.ModeCollect)
	if err != nil {
		return "", service.IntakeOptions{}, err
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	months := fs.Int("months", preset.Admission.MonthsThreshold, "maximum channel age in months")
	minSubs := fs.Int64("min-subs", preset.Admission.MinSubscribers, "minimum subscribers")
	maxSubs := fs.Int64("max-subs", preset.Admission.MaxSubscribers, "maximum subscribers")
	minVideos := fs.Int64("min-videos", preset.Admission.MinVideos, "minimum uploads")
	minGrowth := fs.Int("min-growth", preset.Admission.MinGrowthRate, "minimum growth rate")
	force := fs.Bool("force", false, "store the channel even if it fails admission")
	if err := fs.Parse(args); err != nil {
		return "", service.IntakeOptions{}, fmt.Errorf("invalid flags for %s: %w", command, err)
	}
	if fs.NArg() != 1 {
		return "", service.IntakeOptions{}, fmt.Errorf("%s requires exactly one channel id or URL", command)
	}

	opts := service.IntakeOptions{
		Admission: filter.AdmissionConfig{
			MonthsThreshold: *months,
			MinSubscribers:  *minSubs,
			MaxSubscribers:  *maxSubs,
			MinVideos:       *minVideos,
			MinGrowthRate:   *minGrowth,
		},
		Force:  *force,
		DryRun: command == "validate",
	}
	if err := opts.Admission.Validate(); err != nil {
		return "", service.IntakeOptions{}, err
	}
	return fs.Arg(0), opts, nil
}

func parseIndex(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("batch index required")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid batch index %q", args[0])
	}
	return index, nil
}
