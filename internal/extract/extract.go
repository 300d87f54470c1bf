package extract

import (
	"strings"

	"github.com/John-Robertt/reqmatch/internal/domain"
	"github.com/John-Robertt/reqmatch/internal/table"
)

const (
	// ModuleColumn 是 A 列（二级模块）。
	ModuleColumn = 0
	// RequirementColumn 是 D 列（需求名称）。
	RequirementColumn = 3

	// MinColumns 是表格至少需要的列数。
	MinColumns = RequirementColumn + 1
)

// nanLiteral 是表格工具把空值导出成文本时的常见形态，一律视为空。
const nanLiteral = "nan"

// Extract 从表格中提取模块出现序列与去重后的需求序列。
//
// - modules：A 列，保留重复与行顺序
// - requirements：D 列，按首次出现顺序去重
//
// 失败只有三种：列数不足（schema_invalid）、A 列为空（empty_modules）、D 列为空（empty_requirements）。
func Extract(t table.Table) (modules, requirements []string, err error) {
	if t.Width < MinColumns {
		return nil, nil, domain.Errorf(domain.ErrCodeSchemaInvalid,
			"表格格式不正确：至少需要%d列数据（A列：二级模块，D列：需求名称），实际只有%d列", MinColumns, t.Width)
	}

	modules = make([]string, 0, len(t.Rows))
	for _, c := range t.Column(ModuleColumn) {
		if v, ok := clean(c); ok {
			modules = append(modules, v)
		}
	}

	seen := make(map[string]struct{}, len(t.Rows))
	requirements = make([]string, 0, len(t.Rows))
	for _, c := range t.Column(RequirementColumn) {
		v, ok := clean(c)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		requirements = append(requirements, v)
	}

	if len(modules) == 0 {
		return nil, nil, &domain.Error{Code: domain.ErrCodeEmptyModules}
	}
	if len(requirements) == 0 {
		return nil, nil, &domain.Error{Code: domain.ErrCodeEmptyRequirements}
	}
	return modules, requirements, nil
}

// clean 返回去掉首尾空白后的可用值；Missing、空白、"nan" 都视为不可用。
func clean(c table.Cell) (string, bool) {
	if c.Missing {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" || v == nanLiteral {
		return "", false
	}
	return v, true
}
