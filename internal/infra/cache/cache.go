package cache

import (
	"sync"

	"github.com/John-Robertt/reqmatch/internal/domain"
)

// Slot 保存进程内“最近一次处理结果”，供 GET /api/process-result 读取。
//
// 语义：
// - 仅内存，进程退出即丢失
// - 并发写入时后写者胜出（last-writer-wins）
// - Get 返回副本，调用方修改不会影响槽位内容
type Slot struct {
	mu   sync.RWMutex
	last *domain.RunReport
}

func New() *Slot { return &Slot{} }

// Put 覆盖槽位内容。
func (s *Slot) Put(rr domain.RunReport) {
	c := clone(rr)
	s.mu.Lock()
	s.last = &c
	s.mu.Unlock()
}

// Get 返回最近一次结果；从未写入时 ok=false。
func (s *Slot) Get() (domain.RunReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.RunReport{}, false
	}
	return clone(*s.last), true
}

// Summary 是 Get 的便捷形式，只取统计。
func (s *Slot) Summary() (domain.Summary, bool) {
	rr, ok := s.Get()
	if !ok {
		return domain.Summary{}, false
	}
	return rr.Summary, true
}

// Reset 清空槽位。
func (s *Slot) Reset() {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
}

func clone(rr domain.RunReport) domain.RunReport {
	out := rr
	out.Report.Records = cloneSlice(rr.Report.Records)
	out.Report.Leftover = cloneSlice(rr.Report.Leftover)
	out.Summary.Details = cloneSlice(rr.Summary.Details)
	out.Summary.Warnings = cloneSlice(rr.Summary.Warnings)
	out.Summary.UnmatchedModuleList = cloneSlice(rr.Summary.UnmatchedModuleList)
	out.Summary.LeftoverRequirements = cloneSlice(rr.Summary.LeftoverRequirements)
	out.Summary.MatchedDetails = cloneSlice(rr.Summary.MatchedDetails)
	return out
}

// cloneSlice 保留 nil 与空切片的区别（JSON 输出 null 与 [] 不同）。
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
