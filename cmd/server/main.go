package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/parley/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := server.NewConfigFromEnv()

	// Either use the default port or take one from the command line.
	args := os.Args[1:]
	switch len(args) {
	case 0:
	case 1:
		port, err := server.ParsePort(args[0])
		if err != nil {
			return err
		}
		cfg.Port = port
	default:
		return errors.New("Too many arguments. Expected arguments: none (to use default port) or port.")
	}

	fmt.Printf("Starting server on port %d.\n", cfg.Port)

	srv := server.New(*cfg)
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.WSPort > 0 {
		gw := server.NewWSGateway(srv, *cfg)
		g.Go(gw.ListenAndServe)
		g.Go(func() error {
			<-ctx.Done()
			return gw.Shutdown(5 * time.Second)
		})
	}

	// The console reads stdin, which has no cancellation point, so it runs
	// detached; quit/exit cancels the group through stop.
	console := server.NewConsole(srv.Registry(), os.Stdin, os.Stdout, stop)
	go console.Run()

	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown(10 * time.Second)
	})

	return g.Wait()
}
