package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/FOCUS1407/gestion-immobiliere/internal/api"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/scheduler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the late payment scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.logger.IsLevelEnabled(logrus.DebugLevel) {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			handler := api.NewHandler(a.services, a.tokens, a.logger)
			router := api.NewRouter(handler, a.cfg.Server.CORSOrigins, a.logger)

			if a.cfg.LatePayments.SchedulerEnabled {
				s := scheduler.NewScheduler(a.services.LatePayments, a.cfg.LatePayments.Hour, a.logger)
				s.Start()
				defer s.Stop()
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.Server.Port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Infof("Starting server on port %s", a.cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case sig := <-stop:
				a.logger.WithField("signal", sig.String()).Info("Shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, db, err := openDatabase()
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			logger.Info("Database is up to date")
			return nil
		},
	}
}

func checkLatePaymentsCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "check-late-payments",
		Short: "Scan active leases once and notify agencies of unpaid months",
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now()
			if date != "" {
				d, err := models.ParseDate(date)
				if err != nil {
					return err
				}
				today = d
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.services.LatePayments.Run(cmd.Context(), today)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d late payment notification(s) created\n", created)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "check as of this day (YYYY-MM-DD), defaults to today")
	return cmd
}
