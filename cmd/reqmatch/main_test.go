package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/reqmatch/internal/config"
	"github.com/John-Robertt/reqmatch/internal/domain"
)

const sampleCSV = "二级模块,B,C,需求名称\n登录,,,注册\n登录,,,登录\n导出,,,导出\n"

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv(config.EnvListen, "")
	t.Setenv(config.EnvLogLevel, "")
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func TestMatch_NoTTY_StdoutOnlyBatchJSON(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(in, "a.csv"), sampleCSV)
	writeFile(t, filepath.Join(in, "bad.csv"), "x,y\n1,2\n")

	code, stdout, stderr := runCLI(t, "match", in, "--out", out, "--report")
	if code != 1 {
		t.Fatalf("存在失败项时退出码应为 1，实际 %d\nstderr=%s", code, stderr)
	}

	var br domain.BatchReport
	if err := json.Unmarshal([]byte(stdout), &br); err != nil {
		t.Fatalf("stdout 不是合法的 BatchReport JSON：%v\nstdout=%q", err, stdout)
	}
	if br.Totals != (domain.BatchTotals{Total: 2, Processed: 1, Failed: 1}) {
		t.Fatalf("totals=%+v", br.Totals)
	}
	if br.Items[1].ErrorCode != domain.ErrCodeSchemaInvalid {
		t.Fatalf("bad.csv 应为 schema_invalid：%+v", br.Items[1])
	}
	if !strings.Contains(stderr, "完成：processed=1 skipped=0 failed=1") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr)
	}

	for _, name := range []string{"sorted_a.xlsx", "sorted_a.report.json"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Fatalf("缺少输出 %s：%v", name, err)
		}
	}
}

func TestMatch_SecondRunSkipsExisting(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.csv"), sampleCSV)

	if code, _, stderr := runCLI(t, "match", filepath.Join(in, "a.csv")); code != 0 {
		t.Fatalf("首次运行应成功，实际 %d：%s", code, stderr)
	}
	code, stdout, _ := runCLI(t, "match", filepath.Join(in, "a.csv"))
	if code != 0 {
		t.Fatalf("跳过不算失败，实际退出码 %d", code)
	}
	var br domain.BatchReport
	if err := json.Unmarshal([]byte(stdout), &br); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if br.Totals.Skipped != 1 {
		t.Fatalf("第二次运行应跳过已有输出：%+v", br.Totals)
	}
}

func TestMatch_JSONFormat(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.csv"), sampleCSV)

	code, _, stderr := runCLI(t, "match", filepath.Join(in, "a.csv"), "--format", "json")
	if code != 0 {
		t.Fatalf("退出码 %d：%s", code, stderr)
	}
	b, err := os.ReadFile(filepath.Join(in, "sorted_a.report.json"))
	if err != nil {
		t.Fatalf("缺少 report.json：%v", err)
	}
	var rr domain.RunReport
	if err := json.Unmarshal(b, &rr); err != nil {
		t.Fatalf("report.json 无法解析：%v", err)
	}
	if rr.Summary.MatchRate != 66.67 {
		t.Fatalf("matchRate=%v", rr.Summary.MatchRate)
	}
	if _, err := os.Stat(filepath.Join(in, "sorted_a.xlsx")); !os.IsNotExist(err) {
		t.Fatalf("json 格式不应写工作簿")
	}
}

func TestMatch_RemoteWorkbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/remote.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	out := t.TempDir()
	code, stdout, stderr := runCLI(t, "match", srv.URL+"/files/remote.csv", srv.URL+"/files/missing.csv", "--out", out)
	if code != 1 {
		t.Fatalf("缺失的 URL 应导致退出码 1，实际 %d：%s", code, stderr)
	}
	var br domain.BatchReport
	if err := json.Unmarshal([]byte(stdout), &br); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if br.Totals.Processed != 1 || br.Totals.Failed != 1 {
		t.Fatalf("totals=%+v", br.Totals)
	}
	if _, err := os.Stat(filepath.Join(out, "sorted_remote.xlsx")); err != nil {
		t.Fatalf("缺少远程工作簿的输出：%v", err)
	}
	for _, it := range br.Items {
		if !strings.HasPrefix(it.Input, srv.URL) {
			t.Fatalf("URL 输入应以原始地址展示：%q", it.Input)
		}
	}
}

func TestMatch_FetchFailureKeepsInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	in := t.TempDir()
	out := t.TempDir()
	local := filepath.Join(in, "a.csv")
	writeFile(t, local, sampleCSV)

	// URL 在命令行中排在前面；输出仍按输入排序（本地绝对路径 "/" 小于 "http"）。
	code, stdout, stderr := runCLI(t, "match", srv.URL+"/missing.xlsx", local, "--out", out)
	if code != 1 {
		t.Fatalf("退出码应为 1，实际 %d：%s", code, stderr)
	}
	var br domain.BatchReport
	if err := json.Unmarshal([]byte(stdout), &br); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if len(br.Items) != 2 {
		t.Fatalf("items=%+v", br.Items)
	}
	for i := 1; i < len(br.Items); i++ {
		if br.Items[i-1].Input > br.Items[i].Input {
			t.Fatalf("items 未按输入排序：%q > %q", br.Items[i-1].Input, br.Items[i].Input)
		}
	}
	if br.Items[1].Status != domain.ItemFailed || !strings.HasPrefix(br.Items[1].Input, srv.URL) {
		t.Fatalf("下载失败项应排在本地文件之后：%+v", br.Items)
	}
}

func TestMergeItems_SortedByInput(t *testing.T) {
	got := mergeItems(
		[]domain.ItemResult{{Input: "https://x.test/b.xlsx"}, {Input: "/data/c.csv"}},
		[]domain.ItemResult{{Input: "/data/a.csv"}, {Input: "/data/d.csv"}},
	)
	want := []string{"/data/a.csv", "/data/c.csv", "/data/d.csv", "https://x.test/b.xlsx"}
	for i, it := range got {
		if it.Input != want[i] {
			t.Fatalf("第 %d 项=%q，期望 %q", i, it.Input, want[i])
		}
	}
}

func TestCLI_UsageErrors(t *testing.T) {
	if code, _, _ := runCLI(t, "match"); code != 2 {
		t.Fatalf("缺少参数应返回 2，实际 %d", code)
	}
	if code, _, _ := runCLI(t, "match", "a.xlsx", "--format", "pdf"); code != 2 {
		t.Fatalf("非法 --format 应返回 2，实际 %d", code)
	}
	if code, _, _ := runCLI(t, "nope"); code != 2 {
		t.Fatalf("未知命令应返回 2，实际 %d", code)
	}
}

func TestCLI_ConfigNotFound(t *testing.T) {
	code, _, stderr := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "match", "a.xlsx")
	if code != 1 {
		t.Fatalf("配置缺失应返回 1，实际 %d", code)
	}
	if !strings.Contains(stderr, config.ErrCodeNotFound) {
		t.Fatalf("stderr 应包含 %s：%q", config.ErrCodeNotFound, stderr)
	}
}

func TestWatch_MissingInbox(t *testing.T) {
	code, _, _ := runCLI(t, "watch", filepath.Join(t.TempDir(), "missing"))
	if code != 1 {
		t.Fatalf("收件目录不存在应返回 1，实际 %d", code)
	}
}

func TestFormatItemLine(t *testing.T) {
	line := formatItemLine(domain.ItemResult{
		Input:     "/x/a.xlsx",
		Status:    domain.ItemFailed,
		ErrorCode: domain.ErrCodeEmptyModules,
		ErrorMsg:  "未找到有效的二级模块数据（A列）",
	})
	if !strings.Contains(line, "a.xlsx") || !strings.Contains(line, domain.ErrCodeEmptyModules) {
		t.Fatalf("失败行缺少关键信息：%q", line)
	}

	sum := domain.Summary{MatchRate: 66.67}
	line = formatItemLine(domain.ItemResult{Input: "/x/a.xlsx", Status: domain.ItemProcessed, Workbook: "/o/sorted_a.xlsx", Summary: &sum})
	if !strings.Contains(line, "66.67%") || !strings.Contains(line, "/o/sorted_a.xlsx") {
		t.Fatalf("成功行缺少匹配率或输出路径：%q", line)
	}
}
