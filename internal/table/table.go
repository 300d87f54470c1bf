package table

// Cell 是一个单元格的字符串形态。
// Missing 表示单元格不存在或为空值标记（与“存在但为空串”区分）。
type Cell struct {
	Value   string
	Missing bool
}

// Present 构造一个存在的单元格。
func Present(v string) Cell { return Cell{Value: v} }

// Table 是行优先的矩形表格视图。
//
// 约束：
// - Width 是整张工作表的列数（含表头行，取最宽一行），行可以比 Width 短
// - 超出行长度的单元格视为 Missing
type Table struct {
	Width int
	Rows  [][]Cell
}

// New 根据行数据构造 Table，并计算 Width。
func New(rows [][]Cell) Table {
	w := 0
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return Table{Width: w, Rows: rows}
}

// At 返回 (row, col) 处的单元格；越界返回 Missing。
func (t Table) At(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return Cell{Missing: true}
	}
	r := t.Rows[row]
	if col >= len(r) {
		return Cell{Missing: true}
	}
	return r[col]
}

// Column 按行顺序返回第 col 列的所有单元格（短行补 Missing）。
func (t Table) Column(col int) []Cell {
	out := make([]Cell, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.At(i, col)
	}
	return out
}

// DropHeader 去掉前 n 行（表头）。Width 保持不变：列数由表头决定。
func (t Table) DropHeader(n int) Table {
	if n <= 0 {
		return t
	}
	if n >= len(t.Rows) {
		return Table{Width: t.Width, Rows: [][]Cell{}}
	}
	return Table{Width: t.Width, Rows: t.Rows[n:]}
}

// naMarkers 是 pandas 读取表格时默认识别为空值的文本（na_values 默认集合），按原文精确匹配。
var naMarkers = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// IsNAMarker 报告 v 是否为空值标记（如 Excel 查找失败留下的 #N/A）。
func IsNAMarker(v string) bool {
	_, ok := naMarkers[v]
	return ok
}

// FromString 把读取到的原始字符串转为 Cell：空串与空值标记视为 Missing（与 pandas 读取为 NaN 一致）。
func FromString(v string) Cell {
	if v == "" || IsNAMarker(v) {
		return Cell{Missing: true}
	}
	return Cell{Value: v}
}
