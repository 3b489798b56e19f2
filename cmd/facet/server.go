package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/convert"
	"github.com/chazu/facet/pkg/loader"
	"github.com/chazu/facet/pkg/metrics"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func runServe(args []string) error {
	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "configuration file")
	if err := fs.Parse(args); err != nil {
		return convert.BadParameter(err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()
	logger.Info("starting facet", zap.String("version", Version), zap.String("address", cfg.Server.Address))

	m := metrics.NewCollector(metrics.Namespace, prometheus.DefaultRegisterer, logger)
	s := NewServer(cfg, newPipeline(cfg, m, logger), m, prometheus.DefaultGatherer, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}
	return s.Shutdown(cfg.Server.RequestTimeout)
}

// Server is the HTTP front end of the conversion pipeline.
type Server struct {
	cfg       *config.Config
	app       *fiber.App
	pipeline  *convert.Pipeline
	evaluator *Evaluator
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewServer builds the fiber app and its routes. gatherer backs /metrics.
func NewServer(cfg *config.Config, p *convert.Pipeline, m *metrics.Collector, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		pipeline:  p,
		evaluator: NewEvaluator(cfg.Pipeline, logger),
		metrics:   m,
		logger:    logger.With(zap.String("component", "server")),
	}
	s.app = fiber.New(fiber.Config{
		AppName:      "facet",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	s.app.Use(recover.New())
	s.app.Use(s.observe)

	s.app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.app.Post("/convert", s.handleConvert())
	s.app.Post("/analyse", s.handleConvert(convert.TargetAnalyse))
	s.app.Post("/render", s.handleConvert(convert.TargetMultiview))
	s.app.Post("/drawing", s.handleConvert(convert.TargetDrawing))
	s.app.Post("/vecset", s.handleConvert(convert.TargetVecset))
	s.app.Post("/evaluate", s.handleEvaluate)
	return s
}

// Start blocks serving on the configured address.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown waits up to d for in-flight conversions.
func (s *Server) Shutdown(d time.Duration) error {
	return s.app.ShutdownWithTimeout(d)
}

// observe logs and counts every request.
func (s *Server) observe(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}
	elapsed := time.Since(start)
	s.metrics.RecordHTTPRequest(c.Method(), c.Route().Path, status, elapsed)
	s.logger.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed))
	return err
}

// handleConvert handles an upload. With no fixed targets they come from the
// target query parameter.
func (s *Server) handleConvert(fixed ...convert.Target) fiber.Handler {
	return func(c fiber.Ctx) error {
		targets := fixed
		if len(targets) == 0 {
			var err error
			if targets, err = parseTargets(c.Query("target")); err != nil {
				return s.fail(c, err)
			}
		}
		req, err := requestParams(c)
		if err != nil {
			return s.fail(c, err)
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return s.fail(c, convert.BadParameter(errors.New(`multipart field "file" is required`)))
		}
		name := filepath.Base(fh.Filename)
		if _, err := loader.FormatOf(name); err != nil {
			return s.fail(c, err)
		}

		dir, cleanup, err := convert.NewWorkDir(s.cfg.WorkDir)
		if err != nil {
			return s.fail(c, err)
		}
		defer cleanup()
		req.Input = filepath.Join(dir, name)
		req.OutDir = filepath.Join(dir, "out")
		req.Targets = targets
		if err := c.SaveFile(fh, req.Input); err != nil {
			return s.fail(c, err)
		}

		ctx, cancel := context.WithTimeout(c.Context(), s.cfg.Server.RequestTimeout)
		defer cancel()
		res, err := s.pipeline.Run(ctx, req)
		if err != nil {
			return s.fail(c, err)
		}

		c.Set("X-Facet-Id", res.ID)
		c.Set("X-Facet-Warnings", strconv.Itoa(len(res.Warnings)))
		return s.send(c, res)
	}
}

func requestParams(c fiber.Ctx) (convert.Request, error) {
	var req convert.Request
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"resolution", &req.Resolution},
		{"views", &req.Views},
	} {
		v := c.Query(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, convert.BadParameter(fmt.Errorf("%s: not an integer: %q", p.key, v))
		}
		*p.dst = n
	}
	req.Mode = c.Query("mode")
	return req, nil
}

// send returns a single artefact as-is and several as a zip archive.
func (s *Server) send(c fiber.Ctx, res *convert.Result) error {
	if len(res.Files) == 1 {
		data, err := os.ReadFile(res.Files[0])
		if err != nil {
			return s.fail(c, err)
		}
		c.Attachment(filepath.Base(res.Files[0]))
		return c.Send(data)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range res.Files {
		data, err := os.ReadFile(f)
		if err != nil {
			return s.fail(c, err)
		}
		w, err := zw.Create(filepath.Base(f))
		if err != nil {
			return s.fail(c, err)
		}
		if _, err := w.Write(data); err != nil {
			return s.fail(c, err)
		}
	}
	if len(res.Warnings) > 0 {
		w, err := zw.Create("warnings.txt")
		if err != nil {
			return s.fail(c, err)
		}
		if _, err := w.Write([]byte(strings.Join(res.Warnings, "\n") + "\n")); err != nil {
			return s.fail(c, err)
		}
	}
	if err := zw.Close(); err != nil {
		return s.fail(c, err)
	}
	c.Attachment(res.Name + ".zip")
	return c.Send(buf.Bytes())
}

func (s *Server) fail(c fiber.Ctx, err error) error {
	status := convert.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("conversion failed", zap.Error(err), zap.Int("status", status))
	} else {
		s.logger.Info("request rejected", zap.Error(err), zap.Int("status", status))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "class": convert.Class(err)})
}
