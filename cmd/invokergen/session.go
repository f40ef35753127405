package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/daimatz/invokergen/pkg/config"
	"github.com/daimatz/invokergen/pkg/logging"
	"github.com/daimatz/invokergen/pkg/metrics"
	"github.com/daimatz/invokergen/pkg/observability"
	"github.com/daimatz/invokergen/pkg/vm"
)

// globalOptions holds the persistent flags. Set flags override the config
// file and the environment.
type globalOptions struct {
	configPath  string
	logLevel    string
	naming      string
	metricsAddr string
}

// session is the process state shared by one command run.
type session struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	server  *http.Server
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(o.configPath); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)

	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.naming != "" {
		cfg.Naming = o.naming
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// start loads the configuration and brings up logging, tracing and the
// metrics endpoint.
func (o *globalOptions) start(ctx context.Context) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logging.SetLevelFromString(cfg.LogLevel)

	if err := observability.Init(ctx, cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	s := &session{cfg: cfg, metrics: metrics.Default()}
	if cfg.Metrics.Addr != "" {
		ln, err := net.Listen("tcp", cfg.Metrics.Addr)
		if err != nil {
			return nil, fmt.Errorf("metrics listener: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Op().Error("metrics server failed", "error", err)
			}
		}()
		logging.Op().Info("serving metrics", "addr", ln.Addr().String())
	}
	return s, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.server != nil {
		s.server.Shutdown(ctx)
	}
	if err := observability.Shutdown(ctx); err != nil {
		logging.Op().Warn("tracing shutdown failed", "error", err)
	}
}

// classPath returns the flag value, falling back to the configuration.
func (s *session) classPath(flag string) string {
	if flag != "" {
		return flag
	}
	return s.cfg.ClassPath
}

// newScope returns a loading scope reading class files from classPath.
func newScope(name, classPath string) (*vm.Scope, error) {
	if classPath == "" {
		return vm.NewScope(name, nil, nil), nil
	}
	cl := vm.NewUserClassLoader(classPath, nil)
	if err := cl.DirExists(); err != nil {
		return nil, err
	}
	return vm.NewScope(name, nil, cl), nil
}
