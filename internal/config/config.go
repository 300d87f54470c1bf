package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultListen         = ":5001"
	DefaultMaxUploadMB    = 50
	DefaultHeaderRows     = 1
	DefaultRequestTimeout = 60 * time.Second
	DefaultMaxConcurrent  = 4
	DefaultWorkers        = 4
	DefaultLogLevel       = "info"
	DefaultWatchDebounce  = 500 * time.Millisecond
)

// DefaultFileNames 是在 cwd 下自动发现的配置文件名（按顺序尝试）。
var DefaultFileNames = []string{"reqmatch.yaml", "reqmatch.yml", "reqmatch.json"}

const (
	EnvListen   = "REQMATCH_LISTEN"
	EnvLogLevel = "REQMATCH_LOG_LEVEL"
)

// CLIArgs 是 CLI 可覆盖的配置项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --header-rows=0 必须能覆盖 config.header_rows=1。
type CLIArgs struct {
	ConfigPath string

	Listen    string
	ListenSet bool

	HeaderRows    int
	HeaderRowsSet bool

	OutDir    string
	OutDirSet bool

	Workers    int
	WorkersSet bool

	Verbose bool
}

// FileConfig 对应 reqmatch.yaml 的解析结构（JSON 是 YAML 的子集，.json 同样可读）。
type FileConfig struct {
	Listen         string       `yaml:"listen"`
	MaxUploadMB    int          `yaml:"max_upload_mb"`
	HeaderRows     *int         `yaml:"header_rows"`
	RequestTimeout string       `yaml:"request_timeout"`
	MaxConcurrent  int          `yaml:"max_concurrent"`
	Workers        int          `yaml:"workers"`
	LogLevel       string       `yaml:"log_level"`
	AllowedOrigins []string     `yaml:"allowed_origins"`
	OutDir         string       `yaml:"out_dir"`
	Proxy          *ProxyConfig `yaml:"proxy"`
	Watch          *WatchConfig `yaml:"watch"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// SourcePath 是实际读取的配置文件；未使用配置文件时为空。
	SourcePath string

	Listen         string
	MaxUploadBytes int64
	HeaderRows     int
	RequestTimeout time.Duration
	MaxConcurrent  int
	AllowedOrigins []string

	Workers  int
	OutDir   string
	ProxyURL string

	LogLevel      string
	WatchDebounce time.Duration
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与环境变量、CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则依次尝试 <cwd>/reqmatch.yaml、reqmatch.yml、reqmatch.json（均可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
// 环境变量只覆盖 listen 与 log_level。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)

	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range DefaultFileNames {
			p := filepath.Join(cwdAbs, name)
			c, exists, e := readFileConfig(p)
			if e != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: e}
			}
			if exists {
				cfgPath, fc = p, c
				break
			}
		}
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	// listen：CLI > env > config > 默认
	listen := DefaultListen
	if v := strings.TrimSpace(fc.Listen); v != "" {
		listen = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		listen = v
	}
	if cli.ListenSet {
		listen = strings.TrimSpace(cli.Listen)
	}
	if listen == "" {
		return EffectiveConfig{}, invalid("listen 不能为空")
	}

	maxMB := fc.MaxUploadMB
	if maxMB == 0 {
		maxMB = DefaultMaxUploadMB
	}
	if maxMB < 1 {
		return EffectiveConfig{}, invalid("max_upload_mb 必须为正数，实际是 %d", maxMB)
	}

	headerRows := DefaultHeaderRows
	if fc.HeaderRows != nil {
		headerRows = *fc.HeaderRows
	}
	if cli.HeaderRowsSet {
		headerRows = cli.HeaderRows
	}
	if headerRows < 0 {
		return EffectiveConfig{}, invalid("header_rows 不能为负数，实际是 %d", headerRows)
	}

	timeout := DefaultRequestTimeout
	if v := strings.TrimSpace(fc.RequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return EffectiveConfig{}, invalid("request_timeout 无效：%q", v)
		}
		timeout = d
	}

	// 并发范围建议 [1, 64]；超出截断。
	maxConc := clamp(fc.MaxConcurrent, DefaultMaxConcurrent, 1, 64)

	workers := fc.Workers
	if cli.WorkersSet {
		workers = cli.Workers
	}
	workers = clamp(workers, DefaultWorkers, 1, 32)

	outDir := strings.TrimSpace(fc.OutDir)
	if cli.OutDirSet {
		outDir = strings.TrimSpace(cli.OutDir)
	}
	if outDir != "" {
		outDir = absCleanFrom(cwdAbs, outDir)
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid("proxy.url 无效：%q", proxyURL)
		}
	}

	logLevel := DefaultLogLevel
	if v := strings.TrimSpace(fc.LogLevel); v != "" {
		logLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		logLevel = strings.ToLower(v)
	}
	if cli.Verbose {
		logLevel = "debug"
	}
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, invalid("log_level 只能是 debug|info|warn|error，实际是 %q", logLevel)
	}

	debounce := DefaultWatchDebounce
	if fc.Watch != nil && strings.TrimSpace(fc.Watch.Debounce) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(fc.Watch.Debounce))
		if err != nil || d < 0 {
			return EffectiveConfig{}, invalid("watch.debounce 无效：%q", fc.Watch.Debounce)
		}
		debounce = d
	}

	origins := make([]string, 0, len(fc.AllowedOrigins))
	for _, o := range fc.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return EffectiveConfig{
		SourcePath:     cfgPath,
		Listen:         listen,
		MaxUploadBytes: int64(maxMB) << 20,
		HeaderRows:     headerRows,
		RequestTimeout: timeout,
		MaxConcurrent:  maxConc,
		AllowedOrigins: origins,
		Workers:        workers,
		OutDir:         outDir,
		ProxyURL:       proxyURL,
		LogLevel:       logLevel,
		WatchDebounce:  debounce,
	}, nil
}

// clamp：v==0 时取默认值，然后截断到 [lo, hi]。
func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
