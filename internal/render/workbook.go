package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/reqmatch/internal/domain"
)

// 结果工作簿的固定版式。
var (
	Headers      = []string{"二级模块", "匹配的需求名称", "匹配状态", "匹配方式", "未匹配内容"}
	columnWidths = []float64{15, 25, 12, 12, 40}
)

const (
	SheetName = "匹配结果"

	// OverflowTitle 写在 E2，其下逐行列出未被任何模块认领的需求。
	OverflowTitle      = "未匹配内容"
	OverflowTitleEmpty = "未匹配内容（无）"

	// ContentType 是 xlsx 的 MIME 类型。
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// StatusLabel 返回匹配状态在工作簿中的显示文案。
func StatusLabel(s domain.MatchStatus) string {
	switch s {
	case domain.StatusMatched:
		return "✅已匹配"
	case domain.StatusUnmatched:
		return "⚠️未匹配"
	default:
		return string(s)
	}
}

// MethodLabel 返回匹配方式在工作簿中的显示文案。
func MethodLabel(m domain.MatchMethod) string {
	switch m {
	case domain.MethodExact:
		return "精确匹配"
	case domain.MethodNone:
		return "无"
	default:
		return string(m)
	}
}

// Workbook 把 MatchReport 渲染为结果工作簿。调用方负责 Close。
//
// 版式（固定）：
// - 第 1 行表头（加粗）；第 2 行起每条记录一行，列 A-D 为模块/需求/状态/方式
// - E2 为“未匹配内容”（无剩余需求时为“未匹配内容（无）”），E3 起每行一个剩余需求
// - 未匹配行：B 列浅橙底，C 列黄底红字
func Workbook(r domain.MatchReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fill(f, r); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// WriteWorkbook 渲染并写出 xlsx 字节流。
func WriteWorkbook(w io.Writer, r domain.MatchReport) error {
	f, err := Workbook(r)
	if err != nil {
		return domain.Wrap(domain.ErrCodeRenderFailed, err)
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return domain.Wrap(domain.ErrCodeRenderFailed, err)
	}
	return nil
}

func fill(f *excelize.File, r domain.MatchReport) error {
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}
	sh := SheetName

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	for i, h := range Headers {
		if err := setCell(f, sh, i+1, 1, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sh, "A1", lastHeaderCell(), st.header); err != nil {
		return err
	}

	if len(r.Leftover) == 0 {
		if err := setCell(f, sh, 5, 2, OverflowTitleEmpty); err != nil {
			return err
		}
	} else {
		if err := setCell(f, sh, 5, 2, OverflowTitle); err != nil {
			return err
		}
		for i, req := range r.Leftover {
			if err := setCell(f, sh, 5, 3+i, req); err != nil {
				return err
			}
		}
	}

	for i, rec := range r.Records {
		row := i + 2
		vals := []string{rec.Module, rec.Requirement, StatusLabel(rec.Status), MethodLabel(rec.Method)}
		for col, v := range vals {
			if err := setCell(f, sh, col+1, row, v); err != nil {
				return err
			}
		}
		if rec.Status != domain.StatusUnmatched {
			continue
		}
		if err := styleCell(f, sh, 2, row, st.unmatchedReq); err != nil {
			return err
		}
		if err := styleCell(f, sh, 3, row, st.unmatchedStatus); err != nil {
			return err
		}
	}

	for i, w := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sh, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

type styles struct {
	header          int
	unmatchedReq    int
	unmatchedStatus int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	if s.unmatchedReq, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFE5B4"}},
	}); err != nil {
		return s, err
	}
	if s.unmatchedStatus, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFF00"}},
		Font: &excelize.Font{Color: "FF0000"},
	}); err != nil {
		return s, err
	}
	return s, nil
}

func setCell(f *excelize.File, sheet string, col, row int, v string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	// 一律按文本写入，避免 "001"、"1e3" 之类的需求名被 Excel 解释成数字。
	return f.SetCellStr(sheet, cell, v)
}

func styleCell(f *excelize.File, sheet string, col, row, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

func lastHeaderCell() string {
	return fmt.Sprintf("%c1", 'A'+len(Headers)-1)
}
