package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hengadev/miscutils"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		addr  string
		files []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health checks for store files and Prometheus metrics",
		Example: `  miscutils serve --addr :9090 --file cache.pkl --file secrets.bin
  curl localhost:9090/health/ready`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %v", miscutils.ErrInvalidConfiguration, err)
			}
			logger := cfg.Logger()

			handler, err := newServeMux(files, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			errc := make(chan error, 1)
			go func() {
				logger.Info("serving health and metrics", "addr", addr, "files", files)
				errc <- server.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-cmd.Context().Done():
			}
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "store file to check (repeatable)")
	return cmd
}

// newServeMux registers a critical read check per file and exposes the
// registry on /metrics.
func newServeMux(files []string, reg *prometheus.Registry) (http.Handler, error) {
	checker := miscutils.NewHealthChecker()
	for _, file := range files {
		if err := checker.Register(miscutils.StoreHealthCheck(filepath.Base(file), miscutils.NewFileStore(file))); err != nil {
			return nil, err
		}
	}

	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	checks := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "miscutils",
		Name:      "health_checks",
		Help:      "Number of registered store health checks.",
	}, func() float64 { return float64(len(checker.Names())) })
	if err := reg.Register(checks); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/health", miscutils.HealthHandler(checker))
	mux.Handle("/health/", miscutils.HealthHandler(checker))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux, nil
}
