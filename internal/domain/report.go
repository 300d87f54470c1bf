package domain

import (
	"encoding/json"
	"time"
)

// RunReport 是一次对账运行对外稳定输出（report.json / HTTP JSON）的结构。
type RunReport struct {
	ID     string `json:"id"`
	Source string `json:"source"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary Summary     `json:"summary"`
	Report  MatchReport `json:"report"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 report 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Report.Records == nil {
		r.Report.Records = []MatchRecord{}
	}
	if r.Report.Leftover == nil {
		r.Report.Leftover = []string{}
	}
	r.Summary = Summarize(r.Report)
}

// MarshalJSON 在副本上施加与 Finalize 相同的输出约束（UTC 时间、空切片输出 []），
// 未调用 Finalize 的报告也不会输出 null 或本地时区。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type alias RunReport
	a := alias(r)
	a.StartedAt = a.StartedAt.UTC()
	a.FinishedAt = a.FinishedAt.UTC()
	if a.Report.Records == nil {
		a.Report.Records = []MatchRecord{}
	}
	if a.Report.Leftover == nil {
		a.Report.Leftover = []string{}
	}
	return json.Marshal(a)
}
