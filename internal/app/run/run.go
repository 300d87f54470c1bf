package run

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/reqmatch/internal/domain"
	"github.com/John-Robertt/reqmatch/internal/extract"
	"github.com/John-Robertt/reqmatch/internal/match"
	"github.com/John-Robertt/reqmatch/internal/table"
	"github.com/John-Robertt/reqmatch/internal/table/formats"
)

// Input 是一次对账的输入：本地路径或内存中的字节（上传/远程下载）。
type Input struct {
	// Name 是原始文件名，用于扩展名探测与日志；为空时取 Path 的文件名。
	Name string
	Path string
	Data []byte
}

func (in Input) name() string {
	if in.Name != "" {
		return in.Name
	}
	return filepath.Base(in.Path)
}

// Options 是 Execute 的依赖与参数。零值可用。
type Options struct {
	// Registry 为零值时使用 formats.Default()。
	Registry *table.Registry
	// HeaderRows 是丢弃的表头行数。
	HeaderRows int
	// RunID 为空时生成 uuid。
	RunID string

	Logger   *zap.Logger
	Observer Observer
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o Options) observer() Observer {
	if o.Observer != nil {
		return o.Observer
	}
	return NopObserver{}
}

// Execute 跑完一次完整流水线：读取表格 → 丢弃表头 → 提取两列 → 匹配 → 汇总。
//
// 每次调用只使用局部状态，可并发调用。错误按 domain 分类原样返回（不降级）。
func Execute(ctx context.Context, in Input, opts Options) (domain.RunReport, error) {
	id := opts.RunID
	if id == "" {
		id = uuid.NewString()
	}
	name := in.name()
	log := opts.logger().With(zap.String("run_id", id), zap.String("source", name))
	obs := opts.observer()

	rr := domain.RunReport{ID: id, Source: name, StartedAt: time.Now()}
	obs.OnStart(id, name)

	fail := func(phase string, err error) (domain.RunReport, error) {
		log.Warn("对账失败", zap.String("phase", phase), zap.String("error_code", domain.Code(err)), zap.Error(err))
		return domain.RunReport{}, err
	}

	if err := ctx.Err(); err != nil {
		return fail("load", err)
	}

	// load
	started := time.Now()
	reg, err := registry(opts.Registry)
	if err != nil {
		return fail("load", err)
	}
	tb, err := load(reg, in)
	if err != nil {
		return fail("load", err)
	}
	tb = tb.DropHeader(opts.HeaderRows)
	obs.OnPhaseDone(id, "load", map[string]any{"rows": len(tb.Rows), "width": tb.Width}, time.Since(started))
	log.Debug("读取完成", zap.Int("rows", len(tb.Rows)), zap.Int("width", tb.Width))

	if err := ctx.Err(); err != nil {
		return fail("extract", err)
	}

	// extract
	started = time.Now()
	modules, requirements, err := extract.Extract(tb)
	if err != nil {
		return fail("extract", err)
	}
	obs.OnPhaseDone(id, "extract", map[string]any{"modules": len(modules), "requirements": len(requirements)}, time.Since(started))

	if err := ctx.Err(); err != nil {
		return fail("match", err)
	}

	// match
	started = time.Now()
	rr.Report = match.Match(modules, requirements)
	rr.FinishedAt = time.Now()
	rr.Finalize()
	obs.OnPhaseDone(id, "match", map[string]any{
		"matched":  rr.Summary.MatchedRequirements,
		"leftover": rr.Summary.UnmatchedRequirements,
	}, time.Since(started))

	log.Info("对账完成",
		zap.Int("modules", rr.Summary.ModuleCount),
		zap.Int("matched", rr.Summary.MatchedRequirements),
		zap.Int("unmatched_modules", rr.Summary.UnmatchedModules),
		zap.Int("leftover", rr.Summary.UnmatchedRequirements),
		zap.Float64("match_rate", rr.Summary.MatchRate),
		zap.Duration("elapsed", rr.FinishedAt.Sub(rr.StartedAt)),
	)
	return rr, nil
}

func registry(r *table.Registry) (table.Registry, error) {
	if r != nil {
		return *r, nil
	}
	return formats.Default()
}

func load(reg table.Registry, in Input) (table.Table, error) {
	if in.Data != nil {
		return reg.Read(in.name(), bytes.NewReader(in.Data))
	}
	if in.Path == "" {
		return table.Table{}, domain.Wrap(domain.ErrCodeSourceReadFailed, errors.New("没有输入"))
	}
	return reg.Open(in.Path)
}
