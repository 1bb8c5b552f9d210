package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fhirtools/fhirpath-ls/internal/profile"
	"github.com/fhirtools/fhirpath-ls/server"
	"github.com/fhirtools/fhirpath-ls/server/typecache"
	"github.com/fhirtools/fhirpath-ls/store/cache"
	"github.com/fhirtools/fhirpath-ls/store/durable"
)

const version = "0.4.0"

var rootCmd = &cobra.Command{
	Use:   "fhirpath-ls",
	Short: "FHIRPath language server backend",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return err
		}
		return run(instanceProfile)
	},
}

func run(instanceProfile *profile.Profile) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	engineOpts := []cache.Option{cache.WithLogger(logger)}
	if instanceProfile.CacheDurableEnabled {
		durableStore, err := durable.NewStore(instanceProfile)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, cache.WithDurable(durableStore))
	}
	engine := cache.NewEngine(server.CacheConfigFromProfile(instanceProfile), engineOpts...)

	tc := typecache.NewService(
		engine,
		server.DefaultProvider(),
		typecache.WithLogger(logger),
		typecache.WithWarmup(server.WarmupConfigFromProfile(instanceProfile)),
	)

	s := server.NewServer(instanceProfile, engine, tc)
	if err := s.Start(ctx); err != nil {
		engine.Cleanup(ctx)
		_ = engine.Close()
		return err
	}

	logger.Info("fhirpath-ls started",
		"version", version,
		"mode", instanceProfile.Mode,
		"driver", instanceProfile.Driver,
		"durable", instanceProfile.CacheDurableEnabled,
	)

	<-ctx.Done()
	s.Shutdown(context.Background())
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("mode", "demo", `mode of the server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the admin server")
	rootCmd.PersistentFlags().Int("port", 8230, "port of the admin server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "", `durable cache driver, can be "file" or "sqlite"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name for the sqlite driver")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetDefault("mode", "demo")
	viper.SetDefault("port", 8230)
	viper.SetEnvPrefix("fhirpath")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
