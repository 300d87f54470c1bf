package table

import "fmt"

const (
	StageDetect = "detect"
	StageParse  = "parse"
)

// Error 是读取阶段的可追溯错误（哪个格式、哪个阶段失败）。
// 上层统一归类为 source_read_failed，Error 本身只负责保留上下文。
type Error struct {
	Format string // loader name；detect 阶段可能为空
	Stage  string // "detect" 或 "parse"
	Err    error
}

func (e *Error) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("stage=%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("format=%s stage=%s: %v", e.Format, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
