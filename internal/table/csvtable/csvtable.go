package csvtable

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/John-Robertt/reqmatch/internal/table"
)

// Loader 读取 CSV 导出文件。
//
// Excel 中文版“另存为 CSV”默认是 GBK/GB18030 编码；这里在内容不是合法 UTF-8 时按 GB18030 解码。
type Loader struct {
	// Comma 为空时使用 ','。
	Comma rune
}

var _ table.Loader = Loader{}

func (Loader) Name() string { return "csv" }

func (Loader) Sniff(head []byte, ext string) bool {
	return ext == ".csv"
}

func (l Loader) Load(r io.Reader) (table.Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return table.Table{}, err
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))

	if !utf8.Valid(b) {
		b, _, err = transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), b)
		if err != nil {
			return table.Table{}, err
		}
	}

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if l.Comma != 0 {
		cr.Comma = l.Comma
	}

	var rows [][]table.Cell
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table.Table{}, err
		}
		cells := make([]table.Cell, len(rec))
		for i, v := range rec {
			cells[i] = table.FromString(v)
		}
		rows = append(rows, cells)
	}
	return table.New(rows), nil
}
