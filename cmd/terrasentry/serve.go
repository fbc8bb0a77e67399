// ABOUTME: HTTP exporter for the serve command: periodic rescans behind a small read-only API.
// ABOUTME: Routes /metrics, /findings, /report and /health through security headers and method checks.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jfeddern/TerraSentry/internal/engine"
	"github.com/jfeddern/TerraSentry/internal/metrics"
	"github.com/jfeddern/TerraSentry/internal/providers"
	"github.com/jfeddern/TerraSentry/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Rescan Terraform periodically and expose findings over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.config.Validate(false); err != nil {
				return err
			}

			exporter, err := NewExporter(cmd.Context(), opts.config, opts.logger)
			if err != nil {
				return fmt.Errorf("failed to create exporter: %w", err)
			}
			return exporter.Start(cmd.Context())
		},
	}

	c := opts.config
	cmd.Flags().StringVar(&c.TerraformDir, "terraform-dir", c.TerraformDir, "Directory of Terraform files to scan")
	cmd.Flags().IntVar(&c.Port, "port", c.Port, "Port to expose the HTTP endpoints on")
	cmd.Flags().DurationVar(&c.ScanInterval, "scan-interval", c.ScanInterval, "Interval between rescans")

	return cmd
}

type Exporter struct {
	config *engine.Config
	logger *logrus.Logger
	engine *engine.Engine
}

func NewExporter(ctx context.Context, config *engine.Config, logger *logrus.Logger) (*Exporter, error) {
	logger.WithFields(logrus.Fields{
		"terraform_dir": config.TerraformDir,
		"port":          config.Port,
		"ecr_region":    config.ECRRegion,
		"scan_interval": config.ScanInterval,
		"mock":          config.MockMode,
	}).Info("Initializing TerraSentry")

	table, err := loadTable(config, logger)
	if err != nil {
		return nil, err
	}

	pc := providerConfig(config, config.LLMMaxTokens)
	documentSource, err := providers.CreateDocumentSource(pc, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create document source: %w", err)
	}

	imageSource, err := providers.CreateImageSource(ctx, pc, logger)
	switch {
	case errors.Is(err, providers.ErrImageSourceNotConfigured):
		logger.Info("No ECR registry configured, image vulnerability lookups disabled")
		imageSource = nil
	case err != nil:
		return nil, fmt.Errorf("failed to create image source: %w", err)
	}

	return &Exporter{
		config: config,
		logger: logger,
		engine: engine.NewEngine(documentSource, imageSource, table, config, logger),
	}, nil
}

func (e *Exporter) Start(ctx context.Context) error {
	go e.engine.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", e.config.Port),
		Handler:           e.routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		<-ctx.Done()
		e.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			e.logger.WithError(err).Warn("HTTP server shutdown failed")
		}
	}()

	e.logger.WithField("port", e.config.Port).Info("Starting HTTP server")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (e *Exporter) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", e.securityMiddleware(metrics.CreateMetricsHandler(e.engine, e.logger)))
	mux.HandleFunc("/findings", e.securityMiddleware(server.CreateFindingsHandler(e.engine, e.logger)))
	mux.HandleFunc("/report", e.securityMiddleware(server.CreateReportHandler(e.engine, e.logger)))
	mux.HandleFunc("/health", e.securityMiddleware(e.healthHandler))
	return mux
}

func (e *Exporter) securityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		e.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"remote_ip":  r.RemoteAddr,
			"user_agent": r.UserAgent(),
		}).Debug("HTTP request received")

		next(w, r)
	}
}

func (e *Exporter) healthHandler(w http.ResponseWriter, r *http.Request) {
	_, last := e.engine.GetSnapshot()

	w.Header().Set("Content-Type", "application/json")
	if last.IsZero() {
		fmt.Fprint(w, `{"status":"ok","last_scan":null}`)
		return
	}
	fmt.Fprintf(w, `{"status":"ok","last_scan":%q}`, last.UTC().Format(time.RFC3339))
}
