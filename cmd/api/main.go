package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"university-user-service/cmd/api/app"
	"university-user-service/cmd/api/di"
	"university-user-service/cmd/api/server"
	"university-user-service/internal/config"
	"university-user-service/internal/usecase/auth"
)

func main() {
	ctx, stop := server.WithSignal(context.Background())
	defer stop()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatalf("application exited with error: %v", err)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "university-user-service",
		Usage: "user registration, authentication and directory API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "directory containing app.env",
				Value:   ".",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply the database schema and exit",
				Action: migrate,
			},
			{
				Name:  "create-user",
				Usage: "create a user with any role, e.g. the first administrator",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"CREATE_USER_PASSWORD"}},
					&cli.StringFlag{Name: "role", Value: "admin"},
				},
				Action: createUser,
			},
		},
	}
}

// bootstrap loads configuration and the logger shared by every command.
func bootstrap(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	l, err := app.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, l, nil
}

func serve(c *cli.Context) error {
	cfg, l, err := bootstrap(c)
	if err != nil {
		return err
	}

	a, err := app.New(c.Context, cfg, l)
	if err != nil {
		l.Error("failed to start", zap.Error(err))
		app.SyncLogger(l)
		return err
	}
	return a.Run(c.Context)
}

func migrate(c *cli.Context) error {
	cfg, l, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer app.SyncLogger(l)

	m, err := di.NewMigrator(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return m.Migrate(c.Context)
}

func createUser(c *cli.Context) error {
	cfg, l, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer app.SyncLogger(l)

	container, err := di.NewContainer(c.Context, cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = container.Close() }()

	res, err := container.AuthUC.Register(c.Context, auth.RegisterRequest{
		Name:     c.String("name"),
		Email:    c.String("email"),
		Password: c.String("password"),
		Role:     c.String("role"),
	})
	if err != nil {
		return err
	}

	l.Info("user created",
		zap.String("id", res.User.ID),
		zap.String("email", res.User.Email),
		zap.String("role", res.User.Role),
	)
	fmt.Fprintln(c.App.Writer, res.User.ID)
	return nil
}
