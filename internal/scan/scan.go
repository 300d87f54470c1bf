package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// OutputPrefix 是结果工作簿的文件名前缀；扫描时跳过，避免把输出再次当作输入。
const OutputPrefix = "sorted_"

// File 是一个候选工作簿。
type File struct {
	AbsPath string
	RelPath string
	Ext     string // 小写，含 '.'
	Size    int64
	ModUnix int64
}

// Options 控制扫描范围。
type Options struct {
	// Recursive=false 时只看 root 这一层。
	Recursive bool
	// ExcludeDirs 均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）。
	ExcludeDirs []string
}

// Workbooks 扫描 root 下的候选工作簿。
//
// 规则：
// - 按扩展名识别：.xlsx .xlsm .xls .csv .html .htm（大小写不敏感）
// - 跳过隐藏文件/目录（'.' 开头）、Office 锁文件（~$ 开头）与 sorted_* 输出
// - 永久排除 <root>/done/ 与 <root>/failed/（watch 模式的归档目录）
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func Workbooks(root string, opts Options) ([]File, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, opts.ExcludeDirs)

	files := make([]File, 0, 16)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive || isHidden(d.Name()) || isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if !IsCandidate(name) || isExcluded(path, excluded) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, File{
			AbsPath: path,
			RelPath: rel,
			Ext:     strings.ToLower(filepath.Ext(name)),
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// IsCandidate 只看文件名判断是否为待处理的工作簿（watch 模式复用）。
func IsCandidate(name string) bool {
	if isHidden(name) || strings.HasPrefix(name, "~$") {
		return false
	}
	if strings.HasPrefix(strings.ToLower(name), OutputPrefix) {
		return false
	}
	return IsWorkbookExt(strings.ToLower(filepath.Ext(name)))
}

// IsWorkbookExt 判断扩展名（小写、含 '.'）是否受支持。
func IsWorkbookExt(ext string) bool {
	switch ext {
	case ".xlsx", ".xlsm", ".xls", ".csv", ".html", ".htm":
		return true
	default:
		return false
	}
}

func isHidden(name string) bool { return strings.HasPrefix(name, ".") }

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, 2+len(excludeDirs))
	excluded = append(excluded, filepath.Join(root, "done"), filepath.Join(root, "failed"))

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(filepath.Separator))
}
