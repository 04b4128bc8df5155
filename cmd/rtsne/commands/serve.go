package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/rtsne/am"
	"github.com/teranos/rtsne/errors"
	rtsnegrpc "github.com/teranos/rtsne/grpc"
	"github.com/teranos/rtsne/logger"
	"github.com/teranos/rtsne/server"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd starts the HTTP/WebSocket server and, when configured, the gRPC server.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/WebSocket and gRPC servers",
	Long: `Start the rtsne servers.

HTTP endpoints:
  POST   /api/embed        run_embedding with a JSON body of arguments
  GET    /api/runs         recent runs (?limit=N or ?fingerprint=...)
  GET    /api/runs/{id}    one run with its embedding
  DELETE /api/runs/{id}    delete a run
  GET    /api/config       effective default parameters
  GET    /health           status and version
  GET    /ws               WebSocket with per-iteration progress

gRPC (server.grpc_port, 0 disables):
  rtsne.v1.EmbeddingService/RunEmbedding

Edits to the active am.toml are applied without a restart.`,
	RunE: runServe,
}

var (
	servePort     int
	serveGRPCPort int
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default: server.port)")
	ServeCmd.Flags().IntVar(&serveGRPCPort, "grpc-port", -1, "gRPC port, 0 to disable (default: server.grpc_port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	grpcPort := cfg.Server.GRPCPort
	if serveGRPCPort >= 0 {
		grpcPort = serveGRPCPort
	}

	svc, closeFn, err := openService(cfg, true)
	if err != nil {
		return err
	}
	defer closeFn()

	srv := server.New(svc, cfg, logger.ComponentLogger("server"))
	if path := am.ActiveConfigFile(); path != "" {
		if err := srv.WatchConfig(path); err != nil {
			logger.Warnw("Config hot reload disabled", logger.FieldError, err)
		}
	}

	var grpcListener net.Listener
	if grpcPort > 0 {
		grpcListener, err = net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
		if err != nil {
			return errors.WithHintf(errors.Wrapf(err, "failed to listen on port %d", grpcPort),
				"set server.grpc_port in am.toml or pass --grpc-port 0 to disable gRPC")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(port)
	})
	if grpcListener != nil {
		g.Go(func() error {
			return rtsnegrpc.Serve(gctx, grpcListener, svc, logger.ComponentLogger("grpc"))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	return g.Wait()
}
