// Command rediscache serves and inspects the JSON cache.
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

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mikeydub/go-rediscache/env"
	"github.com/mikeydub/go-rediscache/server"
	"github.com/mikeydub/go-rediscache/service/cache"
	"github.com/mikeydub/go-rediscache/service/logger"
	sentryutil "github.com/mikeydub/go-rediscache/service/sentry"
)

var (
	configFile string
	quietLogs  bool
	port       uint64
	setTTL     uint64
	refreshTTL uint64
)

var facade *cache.Facade

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var rootCmd = &cobra.Command{
	Use:          "rediscache",
	Short:        "Fail-open JSON cache over redis",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if quietLogs {
			logger.SetLoggerOptions(func(l *logrus.Logger) { l.SetLevel(logrus.WarnLevel) })
		}

		if err := env.LoadEnvFile(ctx, configFile, !cmd.Flags().Changed("config")); err != nil {
			return err
		}
		if quietLogs {
			viper.Set("LOG_LEVEL", logrus.WarnLevel.String())
		}

		f, err := server.Init(ctx)
		if err != nil {
			return err
		}
		facade = f
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		sentryutil.Flush()
		if facade == nil {
			return nil
		}
		return facade.Close()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer sentryutil.RecoverAndRaise(cmd.Context())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !cmd.Flags().Changed("port") {
			if p := env.GetInt(ctx, "PORT"); p > 0 {
				port = uint64(p)
			}
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.CoreInit(facade),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.For(ctx).WithFields(logrus.Fields{"port": port}).Info("starting cache server")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.For(nil).Info("shutting down cache server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the value cached at KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value jsoniter.RawMessage
		found, err := facade.Strict().Get(cmd.Context(), args[0], &value)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no cache entry for key %s", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(value))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set KEY JSON",
	Short: "Cache a JSON value at KEY",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseJSONArg(args[1])
		if err != nil {
			return err
		}
		ttl, err := seconds(setTTL)
		if err != nil {
			return err
		}
		return facade.Strict().SetWithTTL(cmd.Context(), args[0], value, ttl)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh KEY JSON",
	Short: "Overwrite the JSON value cached at KEY",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseJSONArg(args[1])
		if err != nil {
			return err
		}
		ttl, err := seconds(refreshTTL)
		if err != nil {
			return err
		}
		return facade.Strict().RefreshWithTTL(cmd.Context(), args[0], value, ttl)
	},
}

var delCmd = &cobra.Command{
	Use:   "del KEY",
	Short: "Delete the entry cached at KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return facade.Strict().Delete(cmd.Context(), args[0])
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that redis is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := facade.Strict().Ping(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "PONG")
		return nil
	},
}

func parseJSONArg(arg string) (jsoniter.RawMessage, error) {
	if !json.Valid([]byte(arg)) {
		return nil, fmt.Errorf("value is not valid JSON: %s", arg)
	}
	return jsoniter.RawMessage(arg), nil
}

func seconds(n uint64) (time.Duration, error) {
	if n > cache.MaxTTLSeconds {
		return 0, fmt.Errorf("ttl must be at most %d seconds, got %d", cache.MaxTTLSeconds, n)
	}
	return time.Duration(n) * time.Second, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", ".env", "env file to load")
	rootCmd.PersistentFlags().BoolVarP(&quietLogs, "quiet", "q", false, "hide info logs")

	serveCmd.Flags().Uint64VarP(&port, "port", "p", 4000, "port to serve on")
	setCmd.Flags().Uint64Var(&setTTL, "ttl", uint64(cache.DefaultSetTTL/time.Second), "time to live in seconds")
	refreshCmd.Flags().Uint64Var(&refreshTTL, "ttl", uint64(cache.DefaultRefreshTTL/time.Second), "time to live in seconds")

	rootCmd.AddCommand(serveCmd, getCmd, setCmd, refreshCmd, delCmd, pingCmd)
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:]))
}
