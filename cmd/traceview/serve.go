package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	handler "github.com/xiaot623/gogo/traceview/internal/transport/http"
	"github.com/xiaot623/gogo/traceview/internal/transport/rpc"
	"github.com/xiaot623/gogo/traceview/internal/transport/ws"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and navigator server",
	Long: `Start the trace viewer server.

The server provides:
  - The producer API for runs, spans and events
  - Reconstructed execution trees with error paths
  - Navigator sessions over HTTP and WebSocket
  - A JSON-RPC producer endpoint when RPC_PORT is set`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides HTTP_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if servePort != 0 {
		cfg.HTTPPort = servePort
	}

	log.Printf("Starting traceview...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Log level: %s", cfg.LogLevel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	svc, closeStore, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	go svc.RunSessionExpiryMonitor(ctx)

	server := handler.NewServer(cfg, svc, ws.NewServer(cfg, svc))
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("API started on port %d", cfg.HTTPPort)

	var rpcServer *rpc.Server
	if cfg.RPCPort != 0 {
		rpcServer, err = rpc.NewServer(svc)
		if err != nil {
			return err
		}
		go func() {
			if err := rpcServer.Start(fmt.Sprintf(":%d", cfg.RPCPort)); err != nil {
				log.Fatalf("Failed to start rpc server: %v", err)
			}
		}()
		log.Printf("RPC started on port %d", cfg.RPCPort)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down traceview...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shutdown rpc server gracefully: %v", err)
		}
	}

	log.Println("Traceview stopped")
	return nil
}
