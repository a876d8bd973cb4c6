package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンド省略時はserveとして起動する。
// SIGINTまたはSIGTERMを受信するとコンテキストがキャンセルされる。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand はCLIのコマンドツリーを構築する。
// ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := Init(w)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	}

	root := &cobra.Command{
		Use:           "growthdesk",
		Short:         "AI business growth assistant API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve,
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(&cobra.Command{
		Use:   string(CommandServe),
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})

	root.AddCommand(&cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runMigrate(cfg)
		},
	})

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	var healthURL string
	healthcheck := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Probe the local /api/health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.Context(), healthURL)
		},
	}
	healthcheck.Flags().StringVar(&healthURL, "url", defaultHealthURL(), "base URL of the running server")
	root.AddCommand(healthcheck)

	return root
}

func defaultHealthURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	return "http://localhost:" + port
}
