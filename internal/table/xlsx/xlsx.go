package xlsx

import (
	"bytes"
	"errors"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/reqmatch/internal/table"
)

// Loader 读取 Office Open XML 工作簿（.xlsx / .xlsm）的第一个工作表。
//
// 约束：
// - 只读单元格的显示值（excelize 的格式化结果），不求值公式
// - 空单元格视为 Missing
type Loader struct{}

var _ table.Loader = Loader{}

var zipMagic = []byte("PK\x03\x04")

func (Loader) Name() string { return "xlsx" }

// Sniff 以 zip 头为准：上传文件的扩展名经常与真实格式不符（例如 .xls 实为 xlsx）。
func (Loader) Sniff(head []byte, ext string) bool {
	return bytes.HasPrefix(head, zipMagic)
}

func (Loader) Load(r io.Reader) (table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return table.Table{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table.Table{}, errors.New("工作簿中没有工作表")
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return table.Table{}, err
	}

	rows := make([][]table.Cell, len(raw))
	for i, r := range raw {
		cells := make([]table.Cell, len(r))
		for j, v := range r {
			cells[j] = table.FromString(v)
		}
		rows[i] = cells
	}
	return table.New(rows), nil
}
