package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/web-casa/aiui/internal/app"
	"github.com/web-casa/aiui/internal/config"
	"github.com/web-casa/aiui/internal/database"
	"github.com/web-casa/aiui/internal/event"
	"github.com/web-casa/aiui/internal/logging"
	"github.com/web-casa/aiui/internal/model"
	"github.com/web-casa/aiui/internal/service"
	"go.uber.org/zap"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "aiui",
	Short: "AI UI: a web front end for conversations with AI models",
	Long: `aiui manages AI model configurations and conversation threads, sends
prompts to OpenAI-compatible backends and serves the multimodal endpoint
used by AR glasses clients.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
			cfg.LogLevel = f.Value.String()
		}
		var err error
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		return errors.WithMessage(err, "cannot build logger")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Init(cfg.DatabaseURL, logger)
		if err != nil {
			return errors.WithMessage(err, "migration failed")
		}
		sqlDB, _ := db.DB()
		return sqlDB.Close()
	},
}

type createUserFlags struct {
	username string
	password string
	admin    bool
}

func (f *createUserFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.username, "username", "", "Username of the new account")
	fs.StringVar(&f.password, "password", "", "Password of the new account (min 6 characters)")
	fs.BoolVar(&f.admin, "admin", false, "Grant the admin role")
}

var newUser = &createUserFlags{}

var createUserCmd = &cobra.Command{
	Use:   "createuser",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Init(cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		role := model.RoleViewer
		if newUser.admin {
			role = model.RoleAdmin
		}
		user, err := service.NewUserService(db, logger).Create(newUser.username, newUser.password, role)
		if err != nil {
			if ve, ok := service.AsValidation(err); ok {
				return fmt.Errorf("invalid account: %v", ve.Fields)
			}
			return errors.WithMessage(err, "cannot create user")
		}
		fmt.Printf("created %s %q (id %d)\n", user.Role, user.Username, user.ID)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ensure the default multimodal AI model exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Init(cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		svc := service.NewAIModelService(db, nil, event.NewBus(logger), logger)
		m, created, err := svc.EnsureDefault(cfg.NOAModel)
		if err != nil {
			return errors.WithMessage(err, "cannot seed default model")
		}
		if created {
			logger.Info("default AI model created", zap.String("name", m.Name))
		} else {
			logger.Info("default AI model already present", zap.String("name", m.Name))
		}
		return nil
	},
}

func serve() error {
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		return errors.WithMessage(err, "failed to initialize app")
	}

	srv := &http.Server{
		Addr:              application.Addr(),
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("data_dir", cfg.DataDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		application.Shutdown()
		return errors.WithMessage(err, "server error")
	}

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(ctx)
	application.Shutdown()
	if err != nil {
		return errors.WithMessage(err, "forced shutdown")
	}
	logger.Info("server exited")
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug,info,warn,error); overrides AIUI_LOG_LEVEL")

	newUser.bind(createUserCmd.Flags())
	createUserCmd.MarkFlagRequired("username")
	createUserCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd, migrateCmd, createUserCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
