package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mediafs/mediad/pkg/media"
	"github.com/mediafs/mediad/pkg/presenter"
	"github.com/mediafs/mediad/pkg/server/httpapi"
	"github.com/mediafs/mediad/pkg/server/middleware"
	"github.com/mediafs/mediad/pkg/store"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:           "mediad",
		Short:         "mediad serves media blobs over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	initRootFlags()
	initCommands()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mediad")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".mediad"))
		}
		viper.AddConfigPath("/etc/mediad")
	}
	viper.SetEnvPrefix("MEDIAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		}
	}
}

func bindConfig(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func initRootFlags() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML or YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace|debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text|json")
	bindConfig("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindConfig("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initCommands() {
	rootCmd.AddCommand(
		newServeCmd(),
		newVersionCmd(),
	)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the media server daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().String("listen", ":8081", "listen address")
	cmd.Flags().Int("block-size", media.DefaultBlockSize, "chunk size in bytes for streamed responses")
	cmd.Flags().String("presenter-url", "", "base URL of the presenter authorization service (required)")
	cmd.Flags().Duration("presenter-timeout", 5*time.Second, "timeout for presenter check calls")
	cmd.Flags().String("auth-header", media.DefaultAuthHeader, "name of the credential-forwarding header")
	cmd.Flags().String("store", "bolt", "storage backend: bolt|memory|disk|s3|postgres")
	cmd.Flags().String("store-path", "mediad.db", "bolt database file or disk store root")
	cmd.Flags().String("s3-endpoint", "", "s3 endpoint host:port")
	cmd.Flags().String("s3-region", "", "s3 region")
	cmd.Flags().String("s3-bucket", "", "s3 bucket")
	cmd.Flags().String("s3-access-key", "", "s3 access key")
	cmd.Flags().String("s3-secret-key", "", "s3 secret key")
	cmd.Flags().Bool("s3-secure", false, "use TLS for s3")
	cmd.Flags().String("postgres-dsn", "", "postgres connection string")
	cmd.Flags().String("api-key", "", "require X-API-Key on /internal/ routes")
	cmd.Flags().Int("rate-limit", 0, "requests allowed per second (0 disables)")
	cmd.Flags().Int64("max-upload", 32<<20, "maximum upload body size in bytes")

	bindConfig("listen", cmd.Flags().Lookup("listen"))
	bindConfig("block_size", cmd.Flags().Lookup("block-size"))
	bindConfig("presenter.url", cmd.Flags().Lookup("presenter-url"))
	bindConfig("presenter.timeout", cmd.Flags().Lookup("presenter-timeout"))
	bindConfig("auth_header", cmd.Flags().Lookup("auth-header"))
	bindConfig("store.provider", cmd.Flags().Lookup("store"))
	bindConfig("store.path", cmd.Flags().Lookup("store-path"))
	bindConfig("store.s3.endpoint", cmd.Flags().Lookup("s3-endpoint"))
	bindConfig("store.s3.region", cmd.Flags().Lookup("s3-region"))
	bindConfig("store.s3.bucket", cmd.Flags().Lookup("s3-bucket"))
	bindConfig("store.s3.access_key", cmd.Flags().Lookup("s3-access-key"))
	bindConfig("store.s3.secret_key", cmd.Flags().Lookup("s3-secret-key"))
	bindConfig("store.s3.secure", cmd.Flags().Lookup("s3-secure"))
	bindConfig("store.postgres.dsn", cmd.Flags().Lookup("postgres-dsn"))
	bindConfig("api_key", cmd.Flags().Lookup("api-key"))
	bindConfig("rate_limit", cmd.Flags().Lookup("rate-limit"))
	bindConfig("max_upload", cmd.Flags().Lookup("max-upload"))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mediad version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mediad %s\n", version)
		},
	}
}

func runServe(parent context.Context) error {
	log, err := buildLogger(viper.GetString("log.level"), viper.GetString("log.format"))
	if err != nil {
		return err
	}

	blockSize := viper.GetInt("block_size")
	if blockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", blockSize)
	}
	presenterURL := viper.GetString("presenter.url")
	if presenterURL == "" {
		return errors.New("presenter url is required (--presenter-url)")
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := buildStore(ctx, viper.GetString("store.provider"), storeOptions{
		Path:      viper.GetString("store.path"),
		Endpoint:  viper.GetString("store.s3.endpoint"),
		Region:    viper.GetString("store.s3.region"),
		Bucket:    viper.GetString("store.s3.bucket"),
		AccessKey: viper.GetString("store.s3.access_key"),
		SecretKey: viper.GetString("store.s3.secret_key"),
		Secure:    viper.GetBool("store.s3.secure"),
		DSN:       viper.GetString("store.postgres.dsn"),
	}, log)
	if err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	defer func() {
		if err := blobs.Close(); err != nil {
			log.Warnf("closing store: %v", err)
		}
	}()

	authHeader := viper.GetString("auth_header")
	delegate, err := presenter.New(presenter.Config{
		BaseURL:    presenterURL,
		AuthHeader: authHeader,
		Client:     &http.Client{Timeout: viper.GetDuration("presenter.timeout")},
		Log:        log,
	})
	if err != nil {
		return err
	}

	svc := media.NewService(blobs, delegate, blockSize, log)
	srv := &httpapi.Server{
		Service: svc,
		Log:     log,
		Opts: httpapi.Options{
			APIKey:         viper.GetString("api_key"),
			AuthHeader:     authHeader,
			MaxUploadBytes: viper.GetInt64("max_upload"),
		},
	}
	if limit := viper.GetInt("rate_limit"); limit > 0 {
		srv.Opts.RateLimit = middleware.RateLimitOptions{Requests: limit, Window: time.Second}
	}

	addr := viper.GetString("listen")
	log.Infof("serving media on %s (store %s)", addr, viper.GetString("store.provider"))
	if err := srv.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("shut down")
	return nil
}

func buildLogger(level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(parsed)
	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}

type storeOptions struct {
	Path      string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
	DSN       string
}

func buildStore(ctx context.Context, provider string, opts storeOptions, log *logrus.Logger) (store.Store, error) {
	switch strings.ToLower(provider) {
	case "", "bolt":
		if opts.Path == "" {
			return nil, errors.New("bolt store requires a path")
		}
		return store.NewBoltStore(store.BoltConfig{Path: opts.Path})
	case "memory":
		return store.NewMemoryStore(), nil
	case "disk":
		if opts.Path == "" {
			return nil, errors.New("disk store requires a root directory")
		}
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, err
		}
		return store.NewDiskStore(osfs.New(opts.Path))
	case "s3":
		if opts.Endpoint == "" || opts.Bucket == "" || opts.AccessKey == "" || opts.SecretKey == "" {
			return nil, errors.New("s3 config requires endpoint, bucket, access key, and secret key")
		}
		return store.NewS3Store(ctx, store.S3Config{
			Endpoint:  opts.Endpoint,
			Region:    opts.Region,
			Bucket:    opts.Bucket,
			AccessKey: opts.AccessKey,
			SecretKey: opts.SecretKey,
			Secure:    opts.Secure,
		})
	case "postgres":
		if opts.DSN == "" {
			return nil, errors.New("postgres store requires a dsn")
		}
		return store.NewPostgresStore(ctx, store.PostgresConfig{DSN: opts.DSN}, log)
	default:
		return nil, fmt.Errorf("unknown store provider %q", provider)
	}
}
