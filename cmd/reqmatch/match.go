package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/reqmatch/internal/app/planner"
	"github.com/John-Robertt/reqmatch/internal/app/run"
	"github.com/John-Robertt/reqmatch/internal/config"
	"github.com/John-Robertt/reqmatch/internal/domain"
	"github.com/John-Robertt/reqmatch/internal/infra/httpx"
	"github.com/John-Robertt/reqmatch/internal/scan"
)

type matchFlags struct {
	out        string
	format     string
	report     bool
	force      bool
	recursive  bool
	headerRows int
	workers    int
}

func newMatchCmd(rf *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	mf := &matchFlags{}
	cmd := &cobra.Command{
		Use:   "match <文件|目录|URL>...",
		Short: "对账一个或多个工作簿，写出 sorted_*.xlsx",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mf.format != planner.FormatXLSX && mf.format != planner.FormatJSON {
				return fmt.Errorf("--format 只能是 xlsx 或 json，实际是 %q", mf.format)
			}
			eff, err := loadConfig(config.CLIArgs{
				ConfigPath:    rf.configPath,
				HeaderRows:    mf.headerRows,
				HeaderRowsSet: cmd.Flags().Changed("header-rows"),
				OutDir:        mf.out,
				OutDirSet:     cmd.Flags().Changed("out"),
				Workers:       mf.workers,
				WorkersSet:    cmd.Flags().Changed("workers"),
				Verbose:       rf.verbose,
			})
			if err != nil {
				return err
			}

			floor := zapcore.WarnLevel
			if rf.verbose {
				floor = zapcore.DebugLevel
			}
			log := newLogger(eff.LogLevel, stderr, floor)
			defer func() { _ = log.Sync() }()

			br := runMatch(cmd.Context(), eff, mf, args, log, stderr)
			emitBatch(stdout, stderr, br)
			if code := br.ExitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&mf.out, "out", "o", "", "输出目录（默认与输入文件同目录；URL 输入默认当前目录）")
	f.StringVar(&mf.format, "format", planner.FormatXLSX, "输出格式：xlsx|json")
	f.BoolVar(&mf.report, "report", false, "同时写出 sorted_<name>.report.json")
	f.BoolVar(&mf.force, "force", false, "覆盖已存在的输出文件")
	f.BoolVarP(&mf.recursive, "recursive", "r", false, "目录输入时递归扫描子目录")
	f.IntVar(&mf.headerRows, "header-rows", config.DefaultHeaderRows, "丢弃的表头行数")
	f.IntVar(&mf.workers, "workers", config.DefaultWorkers, "并发处理的工作簿数")
	return cmd
}

// pending 是尚未规划的一个输入：key 是用于规划输出名的路径。
type pending struct {
	key     string
	display string
	input   run.Input
}

func runMatch(ctx context.Context, eff config.EffectiveConfig, mf *matchFlags, args []string, log *zap.Logger, stderr io.Writer) domain.BatchReport {
	started := time.Now()
	var (
		inputs []pending
		failed []domain.ItemResult
	)

	cwd, _ := os.Getwd()
	for _, a := range args {
		switch {
		case httpx.IsURL(a):
			p, err := fetchInput(ctx, eff, a, cwd)
			if err != nil {
				failed = append(failed, domain.ItemResult{
					Input:     a,
					Status:    domain.ItemFailed,
					ErrorCode: domain.ErrCodeSourceReadFailed,
					ErrorMsg:  err.Error(),
				})
				continue
			}
			inputs = append(inputs, p)
		case isDir(a):
			files, err := scan.Workbooks(a, scan.Options{Recursive: mf.recursive})
			if err != nil {
				failed = append(failed, domain.ItemResult{Input: a, Status: domain.ItemFailed, ErrorCode: domain.ErrCodeIOFailed, ErrorMsg: err.Error()})
				continue
			}
			for _, f := range files {
				inputs = append(inputs, pending{key: f.AbsPath, display: f.AbsPath, input: run.Input{Path: f.AbsPath}})
			}
		default:
			abs, err := filepath.Abs(a)
			if err != nil {
				abs = a
			}
			inputs = append(inputs, pending{key: abs, display: abs, input: run.Input{Path: abs}})
		}
	}

	keys := make([]string, 0, len(inputs))
	byKey := make(map[string][]pending, len(inputs))
	for _, p := range inputs {
		keys = append(keys, p.key)
		byKey[p.key] = append(byKey[p.key], p)
	}

	plans, err := planner.PlanAll(keys, planner.Options{
		OutDir: eff.OutDir,
		Format: mf.format,
		Report: mf.report,
		Force:  mf.force,
	})
	if err != nil {
		code := domain.Code(err)
		if code == "" {
			code = domain.ErrCodeIOFailed
		}
		br := domain.BatchReport{StartedAt: started, FinishedAt: time.Now()}
		br.Items = mergeItems(failed, []domain.ItemResult{{Input: "", Status: domain.ItemFailed, ErrorCode: code, ErrorMsg: err.Error()}})
		br.Finalize()
		return br
	}

	jobs := make([]run.Job, 0, len(plans))
	for _, pl := range plans {
		q := byKey[pl.Input]
		p := q[0]
		byKey[pl.Input] = q[1:]
		pl.Input = p.display
		jobs = append(jobs, run.Job{Input: p.input, Plan: pl})
	}

	var obs run.Observer
	if w, ok := pickProgressWriter(stderr); ok {
		obs = newProgressUI(w)
	}

	br := run.Batch(ctx, jobs, run.BatchOptions{
		Options: run.Options{
			HeaderRows: eff.HeaderRows,
			Logger:     log,
			Observer:   obs,
		},
		Workers: eff.Workers,
		Force:   mf.force,
	})
	if len(failed) > 0 {
		br.Items = mergeItems(failed, br.Items)
		br.StartedAt = started
		br.Finalize()
	}
	return br
}

// mergeItems 合并预检失败项与批处理结果，并保持按输入排序。
func mergeItems(pre, items []domain.ItemResult) []domain.ItemResult {
	out := make([]domain.ItemResult, 0, len(pre)+len(items))
	out = append(out, pre...)
	out = append(out, items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Input < out[j].Input })
	return out
}

func fetchInput(ctx context.Context, eff config.EffectiveConfig, rawURL, cwd string) (pending, error) {
	c, err := httpx.NewClient(eff.ProxyURL)
	if err != nil {
		return pending{}, err
	}
	data, name, err := httpx.Fetch(ctx, c, rawURL, eff.MaxUploadBytes)
	if err != nil {
		return pending{}, err
	}
	if !scan.IsWorkbookExt(strings.ToLower(filepath.Ext(name))) {
		name += ".xlsx"
	}
	return pending{
		key:     filepath.Join(cwd, name),
		display: rawURL,
		input:   run.Input{Name: name, Data: data},
	}, nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
