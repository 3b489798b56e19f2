package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/facet/pkg/convert"
	"go.uber.org/zap"
)

func runConvert(args []string) error {
	fs := newFlagSet("convert")
	in := fs.String("in", "", "input part")
	to := fs.String("to", "", "comma-separated targets")
	out := fs.String("out", ".", "output directory")
	configPath := fs.String("config", "", "configuration file")
	resolution := fs.Int("resolution", 0, "voxel resolution")
	views := fs.Int("views", 0, "number of rendered views")
	mode := fs.String("mode", "", "render mode")
	if err := fs.Parse(args); err != nil {
		return convert.BadParameter(err)
	}
	if *in == "" {
		return convert.BadParameter(fmt.Errorf("-in is required"))
	}
	targets, err := parseTargets(*to)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPipeline(cfg, nil, logger)
	res, err := p.Run(ctx, convert.Request{
		Input:      *in,
		OutDir:     *out,
		Targets:    targets,
		Resolution: *resolution,
		Views:      *views,
		Mode:       *mode,
	})
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		logger.Warn("conversion warning", zap.String("detail", w))
	}
	for _, f := range res.Files {
		fmt.Println(f)
	}
	return nil
}
