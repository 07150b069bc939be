package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"servicemon/internal/config"
	"servicemon/internal/control"
	"servicemon/internal/event"
	"servicemon/internal/server"
	"servicemon/internal/validate"
)

const version = "0.1.0"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "servicemon",
		Short:         "Host-level service monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file (YAML)")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the monitoring daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Run a single validation cycle and print the events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runDaemon(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	services, err := config.BuildServices(cfg)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	log.Printf("Loaded %d service(s) from %s", len(services), configPath)

	eventLog, err := event.NewLog(filepath.Join(cfg.DataDirectory, "events.json"), cfg.EventHistory)
	if err != nil {
		return fmt.Errorf("initialise event log: %w", err)
	}
	queue := event.NewQueue(eventLog)

	controller := control.New(time.Duration(cfg.ControlTimeout) * time.Second)
	engine := validate.New(services, queue, controller)

	srv := server.New(cfg.Listen, eventLog, services)
	queue.Attach(srv.Hub())

	engine.Start(cfg.Interval())
	defer engine.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("servicemon listening on %s (interval %s)", cfg.Listen, cfg.Interval())
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runOnce(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	services, err := config.BuildServices(cfg)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	queue := event.NewQueue()
	engine := validate.New(services, queue, control.New(time.Duration(cfg.ControlTimeout)*time.Second))

	failed := engine.Validate(time.Now())
	for _, e := range queue.Pending() {
		fmt.Printf("%-12s %-12s %-12s %s\n", e.Service, e.Kind, e.State, e.Message)
	}
	if failed > 0 {
		return fmt.Errorf("%d service(s) failed validation", failed)
	}
	return nil
}
