/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command modelctl-demo serves heroes and a polymorphic animal table over
// REST, with prometheus metrics for every controller operation.
package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tomoncle/modelctl/database"
	"github.com/tomoncle/modelctl/utils"
)

var logger = utils.NewLogger("DEMO")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		logger.WithError(err).Fatal("Demo server failed")
	}
}

func run(ctx context.Context, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WithError(err).Warn("Ignoring unreadable .env file")
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	utils.ConfigureLogLevel(cfg.Log.Level)
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	database.InitLogger(database.NewLogrusLogger(utils.NewLogger("DATABASE")))

	database.RegisteredModel(database.NewModelAdapter((*Hero)(nil), 1))
	database.RegisteredModel(database.NewModelAdapter((*Animal)(nil), 2))
	db, err := database.InitDBContext(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.CloseDB(); err != nil {
			logger.WithError(err).Warn("Closing database failed")
		}
	}()

	a, err := newApp(cfg, db)
	if err != nil {
		return err
	}
	if cfg.SeedFile != "" {
		s, err := loadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		n, err := a.seed(ctx, s)
		if err != nil {
			return err
		}
		logger.WithField("rows", n).Info("Seed data loaded")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", cfg.Server.Address).Info("Demo server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	logger.Info("Shutting down demo server")
	return srv.Shutdown(shutdownCtx)
}
