package domain

// MatchStatus 是单条模块记录的匹配结果。
type MatchStatus string

const (
	StatusMatched   MatchStatus = "matched"
	StatusUnmatched MatchStatus = "unmatched"
)

// MatchMethod 记录命中所用的策略。目前只有精确匹配；保留为枚举以便未来扩展。
type MatchMethod string

const (
	MethodExact MatchMethod = "exact"
	MethodNone  MatchMethod = "none"
)

// MatchRecord 对应一次模块出现（A 列的一行），按模块原始顺序排列。
//
// 不变量：Status==StatusUnmatched 时 Requirement 必须为空串。
type MatchRecord struct {
	Module      string      `json:"module"`
	Requirement string      `json:"matched_requirement"`
	Status      MatchStatus `json:"match_status"`
	Method      MatchMethod `json:"match_method"`
}

// MatchReport 是一次匹配运行的完整产物。
//
// 不变量：
// - len(Records) == 模块出现次数
// - 所有 matched 记录的 Requirement 两两不同
// - Leftover 与已匹配需求不相交，二者并集等于去重后的需求集合
type MatchReport struct {
	Records        []MatchRecord `json:"records"`
	UnmatchedCount int           `json:"unmatched_count"`
	Leftover       []string      `json:"leftover_requirements"`
}

// MatchedCount 返回 matched 记录数（等于被消费的需求数）。
func (r MatchReport) MatchedCount() int {
	return len(r.Records) - r.UnmatchedCount
}

// UnmatchedModules 按出现顺序返回未匹配的模块文本（重复保留）。
func (r MatchReport) UnmatchedModules() []string {
	out := make([]string, 0, r.UnmatchedCount)
	for _, rec := range r.Records {
		if rec.Status == StatusUnmatched {
			out = append(out, rec.Module)
		}
	}
	return out
}
