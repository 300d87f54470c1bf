package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/John-Robertt/reqmatch/internal/app/planner"
	"github.com/John-Robertt/reqmatch/internal/app/run"
	"github.com/John-Robertt/reqmatch/internal/domain"
	"github.com/John-Robertt/reqmatch/internal/infra/fsx"
	"github.com/John-Robertt/reqmatch/internal/scan"
)

const (
	DoneDir   = "done"
	FailedDir = "failed"

	// ErrorNoteSuffix 是失败输入旁的说明文件后缀。
	ErrorNoteSuffix = ".error.txt"
)

// Options 控制收件箱的处理方式。
type Options struct {
	Inbox string
	// OutDir 为空时使用 <inbox>/out。
	OutDir string
	// Debounce 是文件最后一次变化后的静默时长；到期才处理（避免读到写了一半的文件）。
	Debounce time.Duration
	Report   bool
	Force    bool

	Run run.Options
	// OnItem 在每个输入处理完成后调用（在 watcher 的 goroutine 中串行调用）。
	OnItem func(domain.ItemResult)
}

type Stats struct {
	Processed int
	Failed    int
	Errors    int
}

// Watcher 监听收件箱目录（不递归），对新出现的工作簿逐个对账。
//
// 处理完成后输入被移入 <inbox>/done/；失败则移入 <inbox>/failed/，
// 并在旁边写一份 <name>.error.txt 说明原因。移动只用 rename（跨盘直接报错）。
type Watcher struct {
	opts Options
	log  *zap.Logger

	mu          sync.Mutex
	debounceMap map[string]time.Time
	stats       Stats
}

func New(opts Options) (*Watcher, error) {
	inbox, err := filepath.Abs(opts.Inbox)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(inbox)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, &fsx.PathTypeConflictError{Path: inbox, Want: "dir", Got: "file"}
	}
	opts.Inbox = inbox
	if opts.OutDir == "" {
		opts.OutDir = filepath.Join(inbox, "out")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}

	log := opts.Run.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		opts:        opts,
		log:         log.With(zap.String("inbox", inbox)),
		debounceMap: make(map[string]time.Time),
	}, nil
}

func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run 先处理收件箱中已有的工作簿，然后持续监听直到 ctx 结束。ctx 结束返回 nil。
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// 先 Add 再扫描：扫描期间新到的文件不会漏掉（最坏是重复入队，处理前会检查存在性）。
	if err := fw.Add(w.opts.Inbox); err != nil {
		return err
	}
	w.log.Info("开始监听收件箱", zap.String("out_dir", w.opts.OutDir), zap.Duration("debounce", w.opts.Debounce))

	if err := w.Sweep(ctx); err != nil {
		return err
	}

	tick := w.opts.Debounce / 4
	if tick < 20*time.Millisecond {
		tick = 20 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("停止监听收件箱")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("fsnotify 事件通道已关闭")
			}
			w.handleEvent(ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("fsnotify 错误通道已关闭")
			}
			w.log.Warn("监听错误", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// Rename 事件携带的是旧路径；新路径会收到 Create。
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if filepath.Dir(ev.Name) != w.opts.Inbox || !scan.IsCandidate(filepath.Base(ev.Name)) {
		return
	}
	w.log.Debug("收到文件事件", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))

	w.mu.Lock()
	w.debounceMap[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	toProcess := make([]string, 0)
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.opts.Debounce {
			toProcess = append(toProcess, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, p := range toProcess {
		if ctx.Err() != nil {
			return
		}
		w.processOne(ctx, p)
	}
}

// Sweep 处理收件箱中当前已有的全部工作簿（按文件名顺序）。
func (w *Watcher) Sweep(ctx context.Context) error {
	files, err := scan.Workbooks(w.opts.Inbox, scan.Options{})
	if err != nil {
		return err
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return nil
		}
		w.processOne(ctx, f.AbsPath)
	}
	return nil
}

func (w *Watcher) processOne(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// 已被移走/删除（例如 sweep 与事件重复入队）。
		return
	}

	res := w.reconcile(ctx, path)
	if res.Status == domain.ItemFailed && res.ErrorCode == run.ErrCodeCanceled {
		// 取消：输入留在收件箱，下次启动时重新处理。
		return
	}

	dstDir := filepath.Join(w.opts.Inbox, DoneDir)
	if res.Status != domain.ItemProcessed {
		dstDir = filepath.Join(w.opts.Inbox, FailedDir)
	}
	moved, err := fsx.MoveInto(path, dstDir)
	if err != nil {
		w.log.Error("移动输入失败", zap.String("path", path), zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
	} else if res.Status != domain.ItemProcessed {
		note := fmt.Sprintf("%s\n%s\n", res.ErrorCode, res.ErrorMsg)
		if err := fsx.WriteFileAtomic(dstDir, filepath.Base(moved)+ErrorNoteSuffix, []byte(note)); err != nil {
			w.log.Warn("写入失败说明出错", zap.String("path", moved), zap.Error(err))
		}
	}

	w.mu.Lock()
	if res.Status == domain.ItemProcessed {
		w.stats.Processed++
	} else {
		w.stats.Failed++
	}
	w.mu.Unlock()

	if w.opts.OnItem != nil {
		w.opts.OnItem(res)
	}
}

func (w *Watcher) reconcile(ctx context.Context, path string) domain.ItemResult {
	plans, err := planner.PlanAll([]string{path}, planner.Options{
		OutDir: w.opts.OutDir,
		Report: w.opts.Report,
		Force:  w.opts.Force,
	})
	if err != nil {
		code := domain.Code(err)
		if code == "" {
			code = domain.ErrCodeIOFailed
		}
		return domain.ItemResult{Input: path, Status: domain.ItemFailed, ErrorCode: code, ErrorMsg: err.Error()}
	}

	br := run.Batch(ctx, []run.Job{{Input: run.Input{Path: path}, Plan: plans[0]}}, run.BatchOptions{
		Options: w.opts.Run,
		Workers: 1,
		Force:   w.opts.Force,
	})
	res := br.Items[0]
	if res.Status == domain.ItemSkipped {
		// 已有输出：按冲突处理，输入移入 failed/。
		res.Status = domain.ItemFailed
		res.ErrorCode = domain.ErrCodeTargetConflict
	}
	return res
}
