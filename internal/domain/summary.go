package domain

import "math"

// UnmatchedModuleReason 是每个未匹配模块对应的提示文案。
const UnmatchedModuleReason = "在需求名称列中未找到完全相同的文本"

const (
	DetailSuccess = "success"
	DetailWarning = "warning"
	DetailInfo    = "info"
)

// Summary 是“处理结果”侧通道对外暴露的统计结构，完全由 MatchReport 推导。
type Summary struct {
	TotalRequirements     int     `json:"totalRequirements"`
	MatchedRequirements   int     `json:"matchedRequirements"`
	UnmatchedRequirements int     `json:"unmatchedRequirements"`
	MatchRate             float64 `json:"matchRate"`

	ModuleCount      int `json:"moduleCount"`
	UnmatchedModules int `json:"unmatchedModuleCount"`

	Details  []SummaryDetail `json:"details"`
	Warnings []ModuleWarning `json:"warnings"`

	UnmatchedModuleList  []string `json:"unmatchedModules"`
	LeftoverRequirements []string `json:"leftoverRequirements"`

	// MatchedDetails 是逐条匹配记录（与工作簿行一一对应）；批处理条目摘要中省略。
	MatchedDetails []MatchRecord `json:"matchedDetails,omitempty"`
}

type SummaryDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ModuleWarning 对应一条未匹配的模块出现。
type ModuleWarning struct {
	Module string `json:"module"`
	Reason string `json:"reason"`
}

// Summarize 是纯函数：同一个 report 永远得到同一个 Summary。
//
// 需求总数按“已匹配 + 剩余”计算，即去重后的需求集合大小；
// 匹配率 = 已匹配需求 / 需求总数 * 100，保留两位小数。
func Summarize(r MatchReport) Summary {
	matched := r.MatchedCount()
	leftover := len(r.Leftover)
	total := matched + leftover

	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(matched)/float64(total)*100*100) / 100
	}

	unmatchedModules := r.UnmatchedModules()
	warnings := make([]ModuleWarning, 0, len(unmatchedModules))
	for _, m := range unmatchedModules {
		warnings = append(warnings, ModuleWarning{Module: m, Reason: UnmatchedModuleReason})
	}

	return Summary{
		TotalRequirements:     total,
		MatchedRequirements:   matched,
		UnmatchedRequirements: leftover,
		MatchRate:             rate,
		ModuleCount:           len(r.Records),
		UnmatchedModules:      len(unmatchedModules),
		Details: []SummaryDetail{
			{Status: DetailSuccess, Message: "成功匹配的需求", Count: matched},
			{Status: DetailWarning, Message: "未能匹配的模块", Count: len(unmatchedModules)},
			{Status: DetailInfo, Message: "处理的模块数量", Count: len(r.Records)},
		},
		Warnings:             warnings,
		UnmatchedModuleList:  unmatchedModules,
		LeftoverRequirements: append([]string{}, r.Leftover...),
		MatchedDetails:       append([]MatchRecord{}, r.Records...),
	}
}
