// Package htmltable 读取以 HTML 表格形式导出的“伪 Excel”文件。
//
// 很多业务系统导出的 .xls 实际是一个带 <table> 的 HTML 文档（常见 GBK 编码），
// Excel 能打开，但不是真正的工作簿格式。
package htmltable

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/John-Robertt/reqmatch/internal/table"
)

// maxColspan 防止恶意/损坏的 colspan 撑爆内存。
const maxColspan = 256

type Loader struct{}

var _ table.Loader = Loader{}

func (Loader) Name() string { return "htmltable" }

func (Loader) Sniff(head []byte, ext string) bool {
	if ext == ".html" || ext == ".htm" {
		return true
	}
	h := bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	h = bytes.ToLower(bytes.TrimSpace(h))
	if !bytes.HasPrefix(h, []byte("<")) {
		return false
	}
	return bytes.Contains(h, []byte("<table")) ||
		bytes.Contains(h, []byte("<html")) ||
		bytes.HasPrefix(h, []byte("<!doctype html"))
}

// Load 解析第一张 <table>。
//
// - 编码：按 BOM / <meta charset> 自动识别（charset.NewReader），缺省 UTF-8
// - colspan：首格放值，其余位置补 Missing，保证列号与 Excel 视图一致
// - rowspan：不展开（被合并的下方单元格视为 Missing）
// - 嵌套表格的行不计入外层表
func (Loader) Load(r io.Reader) (table.Table, error) {
	ur, err := charset.NewReader(r, "text/html")
	if err != nil {
		return table.Table{}, err
	}
	doc, err := goquery.NewDocumentFromReader(ur)
	if err != nil {
		return table.Table{}, err
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return table.Table{}, errors.New("HTML 中没有 <table>")
	}

	var rows [][]table.Cell
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(tbl) {
			return
		}
		var cells []table.Cell
		tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, table.FromString(strings.TrimSpace(td.Text())))
			for k := 1; k < colspan(td); k++ {
				cells = append(cells, table.Cell{Missing: true})
			}
		})
		rows = append(rows, cells)
	})
	return table.New(rows), nil
}

func colspan(s *goquery.Selection) int {
	v, ok := s.Attr("colspan")
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	if n > maxColspan {
		return maxColspan
	}
	return n
}
