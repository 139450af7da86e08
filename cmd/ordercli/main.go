package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ordernotify/internal/app"
	"ordernotify/internal/config"
	httpapi "ordernotify/internal/http"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ordercli",
		Short:         "Submit and inspect orders without the HTTP server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(initDBCmd())
	return rootCmd
}

// openApp собирает конвейер из окружения; логи CLI идут в stderr
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func sendCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Run an order JSON through validation, storage and notification",
		Long: `Reads an order JSON document from stdin (or --file) and processes it
exactly like POST /api/v1/orders. The response body is printed as JSON; the
command fails unless the order was stored and delivered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var raw map[string]any
			if err := json.NewDecoder(in).Decode(&raw); err != nil {
				return fmt.Errorf("invalid order JSON: %w", err)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.Logger.Sync()

			res := a.Dispatcher.Submit(ctx, raw)
			status, body := httpapi.ResultResponse(res)
			if err := printJSON(cmd.OutOrStdout(), body); err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("order %s: %s", res.State, res.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the order from a file instead of stdin")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [orderId]",
		Short: "Print a stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.Dispatcher.GetOrder(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get %s: %w", args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), o)
		},
	}
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the orders table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.EnsureSchema(ctx); err != nil {
				return err
			}
			a.Logger.Info("Schema ready", zap.String("driver", a.Config.Store.Driver))
			fmt.Fprintln(cmd.OutOrStdout(), "orders schema ready")
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
