package render

import (
	"encoding/json"
	"io"

	"github.com/John-Robertt/reqmatch/internal/domain"
)

// JSON 以缩进形式写出 RunReport（report.json / HTTP ?format=json 共用）。
func JSON(w io.Writer, rr domain.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rr); err != nil {
		return domain.Wrap(domain.ErrCodeRenderFailed, err)
	}
	return nil
}
