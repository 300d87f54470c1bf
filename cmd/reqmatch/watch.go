package main

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/reqmatch/internal/app/run"
	"github.com/John-Robertt/reqmatch/internal/app/watch"
	"github.com/John-Robertt/reqmatch/internal/config"
	"github.com/John-Robertt/reqmatch/internal/domain"
)

func newWatchCmd(rf *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		out        string
		report     bool
		force      bool
		headerRows int
	)
	cmd := &cobra.Command{
		Use:   "watch <收件目录>",
		Short: "监听收件目录，自动对账新放入的工作簿",
		Long:  "处理成功的输入移入 <收件目录>/done/，失败的移入 <收件目录>/failed/ 并附 .error.txt；结果默认写到 <收件目录>/out/。",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(config.CLIArgs{
				ConfigPath:    rf.configPath,
				HeaderRows:    headerRows,
				HeaderRowsSet: cmd.Flags().Changed("header-rows"),
				OutDir:        out,
				OutDirSet:     cmd.Flags().Changed("out"),
				Verbose:       rf.verbose,
			})
			if err != nil {
				return err
			}

			log := newLogger(eff.LogLevel, stderr, zapcore.DebugLevel)
			defer func() { _ = log.Sync() }()

			w, err := watch.New(watch.Options{
				Inbox:    args[0],
				OutDir:   eff.OutDir,
				Debounce: eff.WatchDebounce,
				Report:   report,
				Force:    force,
				Run:      run.Options{HeaderRows: eff.HeaderRows, Logger: log},
				OnItem:   itemPrinter(stdout),
			})
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			if err := w.Run(cmd.Context()); err != nil {
				return &exitError{code: 1, err: err}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "输出目录（默认 <收件目录>/out）")
	f.BoolVar(&report, "report", false, "同时写出 sorted_<name>.report.json")
	f.BoolVar(&force, "force", false, "覆盖已存在的输出文件")
	f.IntVar(&headerRows, "header-rows", config.DefaultHeaderRows, "丢弃的表头行数")
	return cmd
}

// itemPrinter：stdout 是 TTY 时打印一行摘要；否则每个结果输出一行 JSON（JSON Lines）。
func itemPrinter(stdout io.Writer) func(domain.ItemResult) {
	var mu sync.Mutex
	tty := isTTY(stdout)
	enc := json.NewEncoder(stdout)
	return func(res domain.ItemResult) {
		mu.Lock()
		defer mu.Unlock()
		if tty {
			_, _ = io.WriteString(stdout, formatItemLine(res)+"\n")
			return
		}
		_ = enc.Encode(res)
	}
}
