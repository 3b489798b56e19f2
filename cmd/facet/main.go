// Command facet converts CAD parts into meshes, point clouds, voxel grids,
// renders, drawings, surface reports and shape embeddings, either once
// from the command line or as an HTTP service.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/convert"
	"github.com/chazu/facet/pkg/embed"
	"github.com/chazu/facet/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Set at build time.
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "version":
		fmt.Printf("facet %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "facet: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates caller mistakes from geometry failures.
func exitCode(err error) int {
	switch convert.Class(err) {
	case convert.ClassInput:
		return 2
	case convert.ClassGeometry:
		return 3
	}
	return 1
}

func printUsage() {
	fmt.Println(`facet - CAD conversion and analysis

Usage:
  facet <command> [options]

Commands:
  convert   Convert one part
  serve     Start the HTTP service
  version   Show version information

Options for 'convert':
  -in <path>        Input part (.step .stp .jt .obj .stl .ply .zy)
  -to <targets>     Comma-separated targets: ` + targetList() + `
  -out <dir>        Output directory (default ".")
  -config <path>    Configuration file (YAML)
  -resolution <r>   Voxel resolution
  -views <n>        Number of rendered views
  -mode <mode>      Render mode: shaded, wireframe, shaded_with_edges

Options for 'serve':
  -config <path>    Configuration file (YAML)

Examples:
  facet convert -in bracket.step -to stl,voxel -out out/
  facet serve -config /etc/facet/facet.yaml`)
}

func targetList() string {
	names := make([]string, len(convert.Targets))
	for i, t := range convert.Targets {
		names[i] = string(t)
	}
	return strings.Join(names, ",")
}

func loadConfig(path string) (*config.Config, error) {
	l := config.NewLoader()
	if path != "" {
		l = l.WithConfigPath(path)
	}
	return l.Load()
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// newPipeline wires the configured encoder, metrics and logger into a
// conversion pipeline.
func newPipeline(cfg *config.Config, m *metrics.Collector, logger *zap.Logger) *convert.Pipeline {
	opts := convert.Options{
		Pipeline:    cfg.Pipeline,
		Reconstruct: cfg.Embedding.Reconstruct,
		Metrics:     m,
		Logger:      logger,
	}
	if cfg.Embedding.URL != "" {
		client := embed.NewClient(embed.ClientConfig{URL: cfg.Embedding.URL, Timeout: cfg.Embedding.Timeout}, logger)
		opts.Embed = embed.New(client, embed.Options{Density: cfg.Embedding.Density, Logger: logger})
	}
	return convert.New(opts)
}

// parseTargets splits a comma-separated target list.
func parseTargets(s string) ([]convert.Target, error) {
	var out []convert.Target
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, err := convert.ParseTarget(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, convert.BadParameter(fmt.Errorf("no targets given, want one of %s", targetList()))
	}
	return out, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = printUsage
	return fs
}
