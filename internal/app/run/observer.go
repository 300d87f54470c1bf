package run

import (
	"time"

	"github.com/John-Robertt/reqmatch/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：Batch 下事件来自多个 goroutine。
type Observer interface {
	// OnStart 在单次 Execute 开始时调用。
	OnStart(runID, source string)
	// OnPhaseDone 在 load / extract / match 每个阶段结束时调用。
	OnPhaseDone(runID, name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在 Batch 中某个输入处理完成时调用。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}

// NopObserver 忽略所有事件。
type NopObserver struct{}

func (NopObserver) OnStart(string, string)                                   {}
func (NopObserver) OnPhaseDone(string, string, map[string]any, time.Duration) {}
func (NopObserver) OnItemDone(int, int, domain.ItemResult, time.Duration)    {}
