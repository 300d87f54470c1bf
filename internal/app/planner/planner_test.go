package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/reqmatch/internal/domain"
)

func TestPlanAll_DefaultsNextToInput(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "需求.xls")

	plans, err := PlanAll([]string{in}, Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("期望 1 个计划，实际 %d", len(plans))
	}
	p := plans[0]
	if p.WorkbookPath() != filepath.Join(root, "sorted_需求.xlsx") {
		t.Fatalf("工作簿路径=%q", p.WorkbookPath())
	}
	if p.ReportPath() != "" || p.Skip {
		t.Fatalf("不应写报告也不应跳过：%+v", p)
	}
}

func TestPlanAll_JSONAndReport(t *testing.T) {
	out := t.TempDir()

	plans, err := PlanAll([]string{"/in/a.csv"}, Options{OutDir: out, Format: "JSON"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if plans[0].WorkbookName != "" || plans[0].ReportName != "sorted_a.report.json" {
		t.Fatalf("json 格式只写报告：%+v", plans[0])
	}

	plans, err = PlanAll([]string{"/in/a.csv"}, Options{OutDir: out, Report: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if plans[0].WorkbookName != "sorted_a.xlsx" || plans[0].ReportName != "sorted_a.report.json" {
		t.Fatalf("应同时写工作簿与报告：%+v", plans[0])
	}

	if _, err := PlanAll([]string{"/in/a.csv"}, Options{Format: "pdf"}); err == nil {
		t.Fatalf("未知格式应报错")
	}
}

func TestPlanAll_SameStemGetsSuffix(t *testing.T) {
	out := t.TempDir()

	plans, err := PlanAll([]string{"/x/a.xlsx", "/x/a.xls", "/y/a.csv"}, Options{OutDir: out})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	got := []string{plans[0].WorkbookName, plans[1].WorkbookName, plans[2].WorkbookName}
	want := []string{"sorted_a.xlsx", "sorted_a__2.xlsx", "sorted_a__3.xlsx"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("第 %d 项期望 %q，实际 %q（全部：%v）", i, want[i], got[i], got)
		}
	}
	if plans[0].Input != "/x/a.xls" {
		t.Fatalf("输入应按路径排序，实际首项 %q", plans[0].Input)
	}
}

func TestPlanAll_ExistingSkippedUnlessForce(t *testing.T) {
	out := t.TempDir()
	write(t, filepath.Join(out, "sorted_a.xlsx"))

	plans, err := PlanAll([]string{"/in/a.xlsx"}, Options{OutDir: out})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !plans[0].Skip || plans[0].SkipReason == "" {
		t.Fatalf("已有输出应跳过：%+v", plans[0])
	}

	plans, err = PlanAll([]string{"/in/a.xlsx"}, Options{OutDir: out, Force: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if plans[0].Skip {
		t.Fatalf("--force 不应跳过：%+v", plans[0])
	}
}

func TestPlanAll_DirectoryInTheWay(t *testing.T) {
	out := t.TempDir()
	if err := os.Mkdir(filepath.Join(out, "sorted_a.xlsx"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	_, err := PlanAll([]string{"/in/a.xlsx"}, Options{OutDir: out, Force: true})
	if domain.Code(err) != domain.ErrCodeTargetConflict {
		t.Fatalf("期望 %q，实际 %v", domain.ErrCodeTargetConflict, err)
	}
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}
