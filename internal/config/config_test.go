package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEffective_DefaultsWithoutFile(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv(EnvListen, "")
	t.Setenv(EnvLogLevel, "")

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.SourcePath != "" {
		t.Fatalf("不应读取任何配置文件，实际 %q", eff.SourcePath)
	}
	if eff.Listen != DefaultListen || eff.HeaderRows != 1 || eff.MaxUploadBytes != 50<<20 {
		t.Fatalf("默认值不正确：%+v", eff)
	}
	if eff.RequestTimeout != DefaultRequestTimeout || eff.LogLevel != "info" {
		t.Fatalf("默认值不正确：%+v", eff)
	}
	if len(eff.AllowedOrigins) != 1 || eff.AllowedOrigins[0] != "*" {
		t.Fatalf("allowed_origins 默认应为 *，实际 %v", eff.AllowedOrigins)
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.yaml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_YAMLDiscovered(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv(EnvListen, "")
	t.Setenv(EnvLogLevel, "")
	writeFile(t, filepath.Join(cwd, "reqmatch.yaml"), []byte(`
listen: "127.0.0.1:9000"
max_upload_mb: 10
header_rows: 0
request_timeout: 5s
allowed_origins: ["https://a.test", " "]
out_dir: out
proxy:
  url: http://127.0.0.1:7890
watch:
  debounce: 1s
`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.SourcePath != filepath.Join(cwd, "reqmatch.yaml") {
		t.Fatalf("SourcePath=%q", eff.SourcePath)
	}
	if eff.Listen != "127.0.0.1:9000" || eff.MaxUploadBytes != 10<<20 || eff.HeaderRows != 0 {
		t.Fatalf("配置未生效：%+v", eff)
	}
	if eff.RequestTimeout != 5*time.Second || eff.WatchDebounce != time.Second {
		t.Fatalf("时长解析不正确：%+v", eff)
	}
	if eff.OutDir != filepath.Join(cwd, "out") {
		t.Fatalf("out_dir 应相对 cwd 解析为绝对路径，实际 %q", eff.OutDir)
	}
	if len(eff.AllowedOrigins) != 1 || eff.AllowedOrigins[0] != "https://a.test" {
		t.Fatalf("allowed_origins 应去掉空白项：%v", eff.AllowedOrigins)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Fatalf("proxy.url=%q", eff.ProxyURL)
	}
}

func TestLoadEffective_JSONFileAccepted(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv(EnvListen, "")
	t.Setenv(EnvLogLevel, "")
	writeFile(t, filepath.Join(cwd, "reqmatch.json"), []byte(`{"listen":":7000","workers":99}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Listen != ":7000" {
		t.Fatalf("listen=%q", eff.Listen)
	}
	if eff.Workers != 32 {
		t.Fatalf("workers 应截断到 32，实际 %d", eff.Workers)
	}
}

func TestLoadEffective_Precedence(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "reqmatch.yaml"), []byte("listen: \":1\"\nheader_rows: 2\nlog_level: warn\n"))

	t.Setenv(EnvListen, ":2")
	t.Setenv(EnvLogLevel, "")
	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Listen != ":2" {
		t.Fatalf("env 应覆盖配置文件，实际 %q", eff.Listen)
	}
	if eff.LogLevel != "warn" {
		t.Fatalf("log_level=%q", eff.LogLevel)
	}

	eff, err = LoadEffective(cwd, CLIArgs{Listen: ":3", ListenSet: true, HeaderRows: 0, HeaderRowsSet: true, Verbose: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Listen != ":3" || eff.HeaderRows != 0 || eff.LogLevel != "debug" {
		t.Fatalf("CLI 应覆盖一切：%+v", eff)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"yaml":      "listen: [",
		"timeout":   "request_timeout: soon",
		"header":    "header_rows: -1",
		"log_level": "log_level: loud",
		"proxy":     "proxy:\n  url: \"::\"",
		"upload":    "max_upload_mb: -5",
		"debounce":  "watch:\n  debounce: -1s",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			t.Setenv(EnvLogLevel, "")
			writeFile(t, filepath.Join(cwd, "reqmatch.yaml"), []byte(body))
			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
			}
		})
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
