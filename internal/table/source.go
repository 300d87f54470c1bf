package table

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/reqmatch/internal/domain"
)

// sniffLen 是格式探测读取的头部字节数。
const sniffLen = 512

// Loader 把“文件格式差异”限制在各自的子包内；核心流程只依赖 Table。
//
// 约束：
// - Load 不做缓存、不做重试
// - Load 只读取第一个工作表 / 第一张表格
// - Sniff 必须是纯函数：只看头部字节与扩展名
type Loader interface {
	Name() string
	Sniff(head []byte, ext string) bool
	Load(r io.Reader) (Table, error)
}

// Registry 是 loader 的只读注册表。探测按注册顺序进行，先注册者优先。
type Registry struct {
	order  []Loader
	byName map[string]Loader
}

func NewRegistry(loaders ...Loader) (Registry, error) {
	byName := make(map[string]Loader, len(loaders))
	order := make([]Loader, 0, len(loaders))
	for _, l := range loaders {
		if l == nil {
			return Registry{}, fmt.Errorf("loader 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(l.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("loader.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 loader：%q", name)
		}
		byName[name] = l
		order = append(order, l)
	}
	return Registry{order: order, byName: byName}, nil
}

func (r Registry) Get(name string) (Loader, bool) {
	if r.byName == nil {
		return nil, false
	}
	l, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// Names 按注册顺序返回 loader 名称。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.order))
	for _, l := range r.order {
		out = append(out, l.Name())
	}
	return out
}

// Detect 返回第一个接受该头部/扩展名的 loader。
func (r Registry) Detect(head []byte, ext string) (Loader, error) {
	ext = strings.ToLower(ext)
	if isOLE2(head) {
		return nil, &Error{Stage: StageDetect, Err: fmt.Errorf("不支持旧版二进制 .xls 格式，请另存为 .xlsx")}
	}
	for _, l := range r.order {
		if l.Sniff(head, ext) {
			return l, nil
		}
	}
	return nil, &Error{Stage: StageDetect, Err: fmt.Errorf("无法识别的文件格式（扩展名 %q）", ext)}
}

// Read 从 r 读取表格；name 只用于取扩展名辅助探测。
// 所有失败都归类为 source_read_failed，并保留底层 *Error 以便追溯。
func (r Registry) Read(name string, rd io.Reader) (Table, error) {
	br := bufio.NewReaderSize(rd, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return Table{}, domain.Wrap(domain.ErrCodeSourceReadFailed, &Error{Stage: StageDetect, Err: err})
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return Table{}, domain.Wrap(domain.ErrCodeSourceReadFailed, &Error{Stage: StageDetect, Err: fmt.Errorf("文件为空")})
	}

	l, err := r.Detect(head, filepath.Ext(name))
	if err != nil {
		return Table{}, domain.Wrap(domain.ErrCodeSourceReadFailed, err)
	}

	t, err := l.Load(br)
	if err != nil {
		return Table{}, domain.Wrap(domain.ErrCodeSourceReadFailed, &Error{Format: l.Name(), Stage: StageParse, Err: err})
	}
	return t, nil
}

// Open 打开本地文件并读取表格。
func (r Registry) Open(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, domain.Wrap(domain.ErrCodeSourceReadFailed, &Error{Stage: StageDetect, Err: err})
	}
	defer f.Close()
	return r.Read(path, f)
}

var ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func isOLE2(head []byte) bool {
	return bytes.HasPrefix(head, ole2Magic)
}
