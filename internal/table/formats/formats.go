// Package formats 组装默认的表格 loader 注册表。
package formats

import (
	"github.com/John-Robertt/reqmatch/internal/table"
	"github.com/John-Robertt/reqmatch/internal/table/csvtable"
	"github.com/John-Robertt/reqmatch/internal/table/htmltable"
	"github.com/John-Robertt/reqmatch/internal/table/xlsx"
)

// Default 返回默认注册表。顺序即探测优先级：xlsx（zip 头）> HTML 表格 > CSV（仅扩展名）。
func Default() (table.Registry, error) {
	return table.NewRegistry(
		xlsx.Loader{},
		htmltable.Loader{},
		csvtable.Loader{},
	)
}

// MustDefault 用于测试与 main 的初始化路径；注册表是静态的，失败只可能是编程错误。
func MustDefault() table.Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}
