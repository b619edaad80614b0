package cli

import (
	"context"
	"net"
	"strconv"

	"github.com/rileyhilliard/boincwatch/internal/broadcast"
	"github.com/rileyhilliard/boincwatch/internal/config"
	"github.com/rileyhilliard/boincwatch/internal/logger"
	"github.com/rileyhilliard/boincwatch/internal/metrics"
	"github.com/rileyhilliard/boincwatch/internal/server"
)

// ServeOptions holds flag overrides for the serve command.
type ServeOptions struct {
	Host      string
	Port      int
	NoMetrics bool
}

// serveCommand polls every client while someone is listening and serves the
// snapshot stream until ctx is cancelled.
func serveCommand(ctx context.Context, opts ServeOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return serve(ctx, cfg, opts, nil)
}

// serve runs the server on ln, or on the configured address when ln is nil.
func serve(ctx context.Context, cfg *config.Config, opts ServeOptions, ln net.Listener) error {
	log := logger.NewEnvLogger("[serve]")

	set := newClientSet(cfg, cfg.Clients)
	defer set.Close()

	poolOpts := []broadcast.Option{
		broadcast.WithInterval(cfg.PollInterval),
		broadcast.WithQueueSize(cfg.QueueSize),
	}
	srvOpts := server.Options{StaticDir: cfg.StaticDir}
	if !opts.NoMetrics {
		collector := metrics.New()
		poolOpts = append(poolOpts, broadcast.WithObserver(collector))
		srvOpts.Metrics = collector.Handler()
	}

	pool := broadcast.New(set.loaders(), poolOpts...)
	pool.Start(ctx)
	// Stop runs after the HTTP server has drained, so no stream outlives it.
	defer pool.Stop()

	srv := server.New(pool, srvOpts)
	if ln != nil {
		log.Info("serving %d clients on %s", len(set.clients), ln.Addr())
		return srv.Serve(ctx, ln)
	}

	addr := listenAddr(cfg.Listen, opts)
	log.Info("serving %d clients on http://%s", len(set.clients), addr)
	return srv.ListenAndServe(ctx, addr)
}

// listenAddr applies --host and --port over the configured listen address.
func listenAddr(listen config.ListenConfig, opts ServeOptions) string {
	host, port := listen.Host, listen.Port
	if opts.Host != "" {
		host = opts.Host
	}
	if opts.Port != 0 {
		port = opts.Port
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
