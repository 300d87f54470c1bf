package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/reqmatch/internal/domain"
	"github.com/John-Robertt/reqmatch/internal/scan"
)

const (
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// Options 决定输出落在哪里、写哪些文件。
type Options struct {
	// OutDir 为空时，输出写在输入文件所在目录。
	OutDir string
	// Format=xlsx 写结果工作簿；Format=json 只写 report.json。
	Format string
	// Report=true 时在工作簿旁额外写一份 report.json（Format=json 时恒为 true）。
	Report bool
	// Force=true 时覆盖已有输出；否则已有输出的输入被跳过。
	Force bool
}

// Plan 是单个输入工作簿的输出计划（纯描述，不做任何写入）。
type Plan struct {
	Input string

	OutDir       string
	WorkbookName string // 为空表示不写工作簿
	ReportName   string // 为空表示不写 report.json

	Skip       bool
	SkipReason string
}

func (p Plan) WorkbookPath() string {
	if p.WorkbookName == "" {
		return ""
	}
	return filepath.Join(p.OutDir, p.WorkbookName)
}

func (p Plan) ReportPath() string {
	if p.ReportName == "" {
		return ""
	}
	return filepath.Join(p.OutDir, p.ReportName)
}

// OutputStem 返回 "sorted_<输入文件名去扩展名>"。
func OutputStem(input string) string {
	base := filepath.Base(input)
	return scan.OutputPrefix + strings.TrimSuffix(base, filepath.Ext(base))
}

// PlanAll 为一批输入生成确定性的输出计划。
//
// 规则：
// - 工作簿：<out>/sorted_<stem>.xlsx；报告：<out>/sorted_<stem>.report.json
// - 同一批次内两个输入映射到同一输出名时（如 a.xls 与 a.xlsx），后者追加 __2、__3…
// - 目标是目录：返回 target_conflict
// - 目标已存在且 !Force：Skip=true
func PlanAll(inputs []string, opts Options) ([]Plan, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatJSON {
		return nil, fmt.Errorf("未知输出格式：%q（只支持 xlsx|json）", opts.Format)
	}

	sorted := append([]string(nil), inputs...)
	sort.Strings(sorted)

	used := map[string]map[string]struct{}{}
	plans := make([]Plan, 0, len(sorted))
	for _, in := range sorted {
		outDir := opts.OutDir
		if outDir == "" {
			outDir = filepath.Dir(in)
		}
		outDir = filepath.Clean(outDir)
		if used[outDir] == nil {
			used[outDir] = map[string]struct{}{}
		}

		stem := allocStem(OutputStem(in), used[outDir])
		used[outDir][stem] = struct{}{}

		p := Plan{Input: in, OutDir: outDir}
		if format == FormatXLSX {
			p.WorkbookName = stem + ".xlsx"
		}
		if format == FormatJSON || opts.Report {
			p.ReportName = stem + ".report.json"
		}

		for _, target := range []string{p.WorkbookPath(), p.ReportPath()} {
			if target == "" {
				continue
			}
			exists, err := existingFile(target)
			if err != nil {
				return nil, err
			}
			if exists && !opts.Force && !p.Skip {
				p.Skip = true
				p.SkipReason = fmt.Sprintf("输出已存在：%s（使用 --force 覆盖）", target)
			}
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// existingFile：不存在返回 false；是普通文件返回 true；其它类型返回 target_conflict。
func existingFile(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, domain.Wrap(domain.ErrCodeIOFailed, err)
	}
	if !fi.Mode().IsRegular() {
		return false, domain.Errorf(domain.ErrCodeTargetConflict, "输出路径已被占用且不是普通文件：%s", path)
	}
	return true, nil
}

func allocStem(stem string, used map[string]struct{}) string {
	if _, ok := used[stem]; !ok {
		return stem
	}
	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s__%d", stem, n)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}
