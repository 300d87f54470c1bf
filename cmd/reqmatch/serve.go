package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/reqmatch/internal/config"
	"github.com/John-Robertt/reqmatch/internal/httpapi"
	"github.com/John-Robertt/reqmatch/internal/infra/cache"
)

func newServeCmd(rf *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务（POST /api/sort-excel）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(config.CLIArgs{
				ConfigPath: rf.configPath,
				Listen:     listen,
				ListenSet:  cmd.Flags().Changed("listen"),
				Verbose:    rf.verbose,
			})
			if err != nil {
				return err
			}

			log := newLogger(eff.LogLevel, stderr, zapcore.DebugLevel)
			defer func() { _ = log.Sync() }()
			if eff.SourcePath != "" {
				log.Info("已加载配置文件", zap.String("path", eff.SourcePath))
			}

			srv, err := httpapi.New(httpapi.Config{
				MaxUploadBytes: eff.MaxUploadBytes,
				HeaderRows:     eff.HeaderRows,
				RequestTimeout: eff.RequestTimeout,
				MaxConcurrent:  eff.MaxConcurrent,
				AllowedOrigins: eff.AllowedOrigins,
				Version:        version,
			}, log, cache.New())
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if err := httpapi.Serve(cmd.Context(), eff.Listen, srv.Handler(), log); err != nil {
				return &exitError{code: 1, err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "监听地址（默认 :5001）")
	return cmd
}
