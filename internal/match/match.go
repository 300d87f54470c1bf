package match

import (
	"strings"

	"github.com/John-Robertt/reqmatch/internal/domain"
)

// Match 以模块为基准，在需求池中做一对一的贪心精确匹配。
//
// 规则（固定）：
// - 按 modules 原始顺序逐个处理；每个模块最多消费一个需求
// - 命中条件：两侧去掉首尾空白后逐字节相等（区分大小写，不做任何归一化）
// - 命中的需求立即从池中移除，之后不再参与匹配
// - leftover 按 requirements 的原始顺序输出（首次出现顺序）
//
// requirements 由 extract 保证已去重，因此池中按值唯一：用“值 -> 是否可用”的索引即可
// 得到与线性扫描完全一致的结果，复杂度 O(M+R)。
//
// Match 是纯函数：每次调用各自构造池，不持有任何共享状态；输入不会被修改。
func Match(modules, requirements []string) domain.MatchReport {
	pool := newPool(requirements)

	records := make([]domain.MatchRecord, 0, len(modules))
	unmatched := 0
	for _, m := range modules {
		m = strings.TrimSpace(m)
		if r, ok := pool.take(m); ok {
			records = append(records, domain.MatchRecord{
				Module:      m,
				Requirement: r,
				Status:      domain.StatusMatched,
				Method:      domain.MethodExact,
			})
			continue
		}
		records = append(records, domain.MatchRecord{
			Module:      m,
			Requirement: "",
			Status:      domain.StatusUnmatched,
			Method:      domain.MethodNone,
		})
		unmatched++
	}

	return domain.MatchReport{
		Records:        records,
		UnmatchedCount: unmatched,
		Leftover:       pool.remaining(),
	}
}

// pool 是一次匹配运行内的可用需求集合。
type pool struct {
	order     []string
	available map[string]bool // trimmed value -> 仍未被消费
}

func newPool(requirements []string) *pool {
	p := &pool{
		order:     make([]string, 0, len(requirements)),
		available: make(map[string]bool, len(requirements)),
	}
	for _, r := range requirements {
		r = strings.TrimSpace(r)
		if _, dup := p.available[r]; dup {
			// 理论上不会出现（extract 已去重）；重复值只保留首次出现，保证一对一。
			continue
		}
		p.available[r] = true
		p.order = append(p.order, r)
	}
	return p
}

func (p *pool) take(v string) (string, bool) {
	if !p.available[v] {
		return "", false
	}
	p.available[v] = false
	return v, true
}

func (p *pool) remaining() []string {
	out := make([]string, 0, len(p.order))
	for _, r := range p.order {
		if p.available[r] {
			out = append(out, r)
		}
	}
	return out
}
