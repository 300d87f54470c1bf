package run

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/reqmatch/internal/app/planner"
	"github.com/John-Robertt/reqmatch/internal/domain"
	"github.com/John-Robertt/reqmatch/internal/infra/fsx"
	"github.com/John-Robertt/reqmatch/internal/render"
)

// ErrCodeCanceled 表示批处理被取消时尚未完成的输入。
const ErrCodeCanceled = "canceled"

// Job 是批处理中的一个输入及其输出计划。
type Job struct {
	Input Input
	Plan  planner.Plan
}

type BatchOptions struct {
	Options

	// Workers 是并发处理的输入数；<1 按 1 处理。
	Workers int
	// Force=true 时覆盖已有输出。
	Force bool
}

// Batch 以 worker pool 并发处理多个输入；单个输入失败不影响其他输入。
// 结果按输入路径排序，保证输出稳定。
func Batch(ctx context.Context, jobs []Job, opts BatchOptions) domain.BatchReport {
	br := domain.BatchReport{
		StartedAt: time.Now(),
		Items:     make([]domain.ItemResult, 0, len(jobs)),
	}
	log := opts.logger()
	obs := opts.observer()

	todo := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Plan.Skip {
			br.Items = append(br.Items, domain.ItemResult{
				Input:    j.Plan.Input,
				Status:   domain.ItemSkipped,
				ErrorMsg: j.Plan.SkipReason,
			})
			continue
		}
		todo = append(todo, j)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	log.Debug("批处理开始", zap.Int("inputs", len(jobs)), zap.Int("todo", len(todo)), zap.Int("workers", workers))

	type execResult struct {
		res domain.ItemResult
		dur time.Duration
	}

	jobCh := make(chan Job)
	results := make(chan execResult, len(todo))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				started := time.Now()
				results <- execResult{res: processOne(ctx, j, opts), dur: time.Since(started)}
			}
		}()
	}

	go func() {
		for _, j := range todo {
			jobCh <- j
		}
		close(jobCh)
		wg.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		done++
		br.Items = append(br.Items, r.res)
		obs.OnItemDone(done, len(todo), r.res, r.dur)
	}

	sort.SliceStable(br.Items, func(i, j int) bool { return br.Items[i].Input < br.Items[j].Input })
	br.FinishedAt = time.Now()
	br.Finalize()
	log.Info("批处理完成",
		zap.Int("processed", br.Totals.Processed),
		zap.Int("skipped", br.Totals.Skipped),
		zap.Int("failed", br.Totals.Failed),
	)
	return br
}

func processOne(ctx context.Context, j Job, opts BatchOptions) domain.ItemResult {
	res := domain.ItemResult{Input: j.Plan.Input}

	if err := ctx.Err(); err != nil {
		res.Status = domain.ItemFailed
		res.ErrorCode = ErrCodeCanceled
		res.ErrorMsg = err.Error()
		return res
	}

	o := opts.Options
	o.RunID = ""
	rr, err := Execute(ctx, j.Input, o)
	if err != nil {
		fillError(&res, err)
		return res
	}
	res.RunID = rr.ID
	sum := rr.Summary
	sum.MatchedDetails = nil
	res.Summary = &sum

	if err := WriteOutputs(j.Plan, rr, opts.Force); err != nil {
		fillError(&res, err)
		return res
	}
	res.Status = domain.ItemProcessed
	res.Workbook = j.Plan.WorkbookPath()
	res.Report = j.Plan.ReportPath()
	return res
}

func fillError(res *domain.ItemResult, err error) {
	res.Status = domain.ItemFailed
	res.ErrorCode = domain.Code(err)
	if res.ErrorCode == "" {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.ErrorCode = ErrCodeCanceled
		} else {
			res.ErrorCode = domain.ErrCodeIOFailed
		}
	}
	res.ErrorMsg = err.Error()
}

// WriteOutputs 按计划原子写出结果工作簿与 report.json。
//
// force=false 时绝不覆盖已有文件（计划之后才出现的同名文件也一样）。
func WriteOutputs(p planner.Plan, rr domain.RunReport, force bool) error {
	if p.WorkbookName != "" {
		var buf bytes.Buffer
		if err := render.WriteWorkbook(&buf, rr.Report); err != nil {
			return err
		}
		if err := write(p.OutDir, p.WorkbookName, buf.Bytes(), force); err != nil {
			return err
		}
	}
	if p.ReportName != "" {
		var buf bytes.Buffer
		if err := render.JSON(&buf, rr); err != nil {
			return err
		}
		if err := write(p.OutDir, p.ReportName, buf.Bytes(), force); err != nil {
			return err
		}
	}
	return nil
}

func write(dir, name string, data []byte, force bool) error {
	var err error
	if force {
		err = fsx.WriteFileAtomic(dir, name, data)
	} else {
		err = fsx.WriteFileAtomicNoOverwrite(dir, name, data)
	}
	switch {
	case err == nil:
		return nil
	case fsx.IsPathTypeConflict(err), errors.Is(err, os.ErrExist):
		return domain.Wrap(domain.ErrCodeTargetConflict, err)
	default:
		return domain.Wrap(domain.ErrCodeIOFailed, err)
	}
}
