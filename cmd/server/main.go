package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gihan9a/positionmodeler/internal/config"
	"gihan9a/positionmodeler/internal/modeler"
	"gihan9a/positionmodeler/internal/repository"
	"gihan9a/positionmodeler/internal/server"
	"gihan9a/positionmodeler/internal/store"
	"gihan9a/positionmodeler/internal/tls"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// glog registers its flags on the default set; log to stderr unless told otherwise
	flag.Set("logtostderr", "true")
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags and get configuration
	cfg, err := config.ParseFlags()
	if err != nil {
		return fmt.Errorf("error parsing configuration: %w", err)
	}

	// Set up the TLS certificate if needed
	if cfg.TLS.Enabled && cfg.TLS.GenerateCert {
		if err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hosts); err != nil {
			return fmt.Errorf("failed to set up TLS certificate: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	documents, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer documents.Close()

	service := modeler.NewService(repository.NewPositions(documents))

	// Edits made directly to the store directory reach subscribers too
	if fileStore, ok := documents.(*store.FileStore); ok && cfg.Store.Watch {
		err := fileStore.Watch(func(collection, id string) {
			if collection == repository.PositionsCollection {
				service.NotifyExternal(id)
			}
		})
		if err != nil {
			return err
		}
	}

	positionServer := server.NewPositionServer(cfg, service)
	defer positionServer.Close()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: positionServer.SetupRoutes(),
		// Subscription streams end when the process is asked to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.TLS.Enabled {
			glog.Infof("Position modeler running at https://localhost%s%s", httpServer.Addr, cfg.BasePath)
			glog.Infof("Using TLS certificate %s and key %s", cfg.TLS.CertFile, cfg.TLS.KeyFile)
			err = httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			glog.Infof("Position modeler running at http://localhost%s%s", httpServer.Addr, cfg.BasePath)
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		glog.Infof("Shutting down, waiting up to %s for open requests", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
