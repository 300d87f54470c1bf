package domain

import "time"

type ItemStatus string

const (
	ItemProcessed ItemStatus = "processed"
	ItemSkipped   ItemStatus = "skipped"
	ItemFailed    ItemStatus = "failed"
)

// ItemResult 是批处理中单个输入工作簿的结果。
type ItemResult struct {
	Input  string     `json:"input"`
	Status ItemStatus `json:"status"`

	RunID    string `json:"run_id,omitempty"`
	Workbook string `json:"workbook,omitempty"`
	Report   string `json:"report,omitempty"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	Summary *Summary `json:"summary,omitempty"`
}

type BatchTotals struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// BatchReport 是 CLI 批处理（match 目录 / watch 单次）的稳定输出。
type BatchReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Totals     BatchTotals  `json:"totals"`
	Items      []ItemResult `json:"items"`
}

// Finalize 统一时间为 UTC 并重算 totals。Items 顺序由调用方负责。
func (b *BatchReport) Finalize() {
	b.StartedAt = b.StartedAt.UTC()
	b.FinishedAt = b.FinishedAt.UTC()
	if b.Items == nil {
		b.Items = []ItemResult{}
	}

	t := BatchTotals{Total: len(b.Items)}
	for _, it := range b.Items {
		switch it.Status {
		case ItemProcessed:
			t.Processed++
		case ItemSkipped:
			t.Skipped++
		case ItemFailed:
			t.Failed++
		}
	}
	b.Totals = t
}

// ExitCode：全部成功或跳过为 0；部分失败为 1。
func (b BatchReport) ExitCode() int {
	if b.Totals.Failed > 0 {
		return 1
	}
	return 0
}
