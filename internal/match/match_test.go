package match

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/John-Robertt/reqmatch/internal/domain"
)

func matched(m string) domain.MatchRecord {
	return domain.MatchRecord{Module: m, Requirement: m, Status: domain.StatusMatched, Method: domain.MethodExact}
}

func unmatched(m string) domain.MatchRecord {
	return domain.MatchRecord{Module: m, Requirement: "", Status: domain.StatusUnmatched, Method: domain.MethodNone}
}

func TestMatch_Scenarios(t *testing.T) {
	cases := []struct {
		name     string
		modules  []string
		reqs     []string
		want     []domain.MatchRecord
		leftover []string
	}{
		{
			name:     "duplicate module: first occurrence wins",
			modules:  []string{"A", "A"},
			reqs:     []string{"A"},
			want:     []domain.MatchRecord{matched("A"), unmatched("A")},
			leftover: []string{},
		},
		{
			name:     "no match",
			modules:  []string{"Z"},
			reqs:     []string{"Y"},
			want:     []domain.MatchRecord{unmatched("Z")},
			leftover: []string{"Y"},
		},
		{
			name:     "full reconciliation by value not position",
			modules:  []string{"A", "B"},
			reqs:     []string{"B", "A"},
			want:     []domain.MatchRecord{matched("A"), matched("B")},
			leftover: []string{},
		},
		{
			name:     "case sensitive and no substring",
			modules:  []string{"login", "Log", "Login"},
			reqs:     []string{"Login", "Login page"},
			want:     []domain.MatchRecord{unmatched("login"), unmatched("Log"), matched("Login")},
			leftover: []string{"Login page"},
		},
		{
			name:     "trimmed equality",
			modules:  []string{"  用户管理\t"},
			reqs:     []string{"用户管理 "},
			want:     []domain.MatchRecord{matched("用户管理")},
			leftover: []string{},
		},
		{
			name:     "leftover keeps first appearance order",
			modules:  []string{"C"},
			reqs:     []string{"D", "C", "B", "A"},
			want:     []domain.MatchRecord{matched("C")},
			leftover: []string{"D", "B", "A"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Match(tc.modules, tc.reqs)
			if diff := cmp.Diff(tc.want, got.Records); diff != "" {
				t.Fatalf("records 不符合预期 (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.leftover, got.Leftover); diff != "" {
				t.Fatalf("leftover 不符合预期 (-want +got):\n%s", diff)
			}
			wantUnmatched := 0
			for _, r := range tc.want {
				if r.Status == domain.StatusUnmatched {
					wantUnmatched++
				}
			}
			if got.UnmatchedCount != wantUnmatched {
				t.Fatalf("UnmatchedCount=%d，期望 %d", got.UnmatchedCount, wantUnmatched)
			}
		})
	}
}

func TestMatch_DoesNotMutateInputs(t *testing.T) {
	mods := []string{" A ", "B"}
	reqs := []string{"A", "B"}
	_ = Match(mods, reqs)
	if diff := cmp.Diff([]string{" A ", "B"}, mods); diff != "" {
		t.Fatalf("modules 被修改：%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B"}, reqs); diff != "" {
		t.Fatalf("requirements 被修改：%s", diff)
	}
}

// linearScan 是最直接的参考实现：可变有序池 + 线性扫描 + 命中即移除。
func linearScan(modules, requirements []string) ([]domain.MatchRecord, []string) {
	avail := append([]string(nil), requirements...)
	consumed := map[string]bool{}
	var recs []domain.MatchRecord
	for _, m := range modules {
		m = strings.TrimSpace(m)
		idx := -1
		for i, r := range avail {
			if strings.TrimSpace(r) == m {
				idx = i
				break
			}
		}
		if idx < 0 {
			recs = append(recs, unmatched(m))
			continue
		}
		r := strings.TrimSpace(avail[idx])
		recs = append(recs, domain.MatchRecord{Module: m, Requirement: r, Status: domain.StatusMatched, Method: domain.MethodExact})
		avail = append(avail[:idx], avail[idx+1:]...)
		consumed[r] = true
	}
	left := []string{}
	for _, r := range requirements {
		if !consumed[r] {
			left = append(left, r)
		}
	}
	return recs, left
}

func randomInputs(rnd *rand.Rand) (modules, requirements []string) {
	alphabet := []string{"A", "B", "C", "D", "E", "F", "a", "登录", "注册"}
	nm := rnd.Intn(20)
	for i := 0; i < nm; i++ {
		modules = append(modules, alphabet[rnd.Intn(len(alphabet))])
	}
	seen := map[string]bool{}
	nr := 1 + rnd.Intn(8)
	for i := 0; i < nr; i++ {
		v := alphabet[rnd.Intn(len(alphabet))]
		if !seen[v] {
			seen[v] = true
			requirements = append(requirements, v)
		}
	}
	return modules, requirements
}

func TestMatch_Properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(20260209))

	for iter := 0; iter < 500; iter++ {
		mods, reqs := randomInputs(rnd)
		got := Match(mods, reqs)

		// 与参考实现一致（索引优化不改变可观察结果）。
		wantRecs, wantLeft := linearScan(mods, reqs)
		if diff := cmp.Diff(wantRecs, got.Records, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("iter=%d mods=%v reqs=%v 与线性扫描不一致：\n%s", iter, mods, reqs, diff)
		}
		if diff := cmp.Diff(wantLeft, got.Leftover); diff != "" {
			t.Fatalf("iter=%d leftover 不一致：\n%s", iter, diff)
		}

		// 模块数守恒。
		if len(got.Records) != len(mods) {
			t.Fatalf("iter=%d len(records)=%d，期望 %d", iter, len(got.Records), len(mods))
		}

		// 每个需求至多被消费一次；matched ∪ leftover == requirements，且不相交。
		matchedSet := map[string]int{}
		for _, r := range got.Records {
			if r.Status == domain.StatusMatched {
				matchedSet[r.Requirement]++
				if r.Requirement != r.Module {
					t.Fatalf("iter=%d 非精确匹配：%+v", iter, r)
				}
			} else if r.Requirement != "" {
				t.Fatalf("iter=%d unmatched 记录的 Requirement 应为空：%+v", iter, r)
			}
		}
		union := map[string]bool{}
		for v, n := range matchedSet {
			if n > 1 {
				t.Fatalf("iter=%d 需求 %q 被消费了 %d 次", iter, v, n)
			}
			union[v] = true
		}
		for _, v := range got.Leftover {
			if matchedSet[v] > 0 {
				t.Fatalf("iter=%d leftover 与已匹配相交：%q", iter, v)
			}
			union[v] = true
		}
		if len(union) != len(reqs) {
			t.Fatalf("iter=%d matched ∪ leftover 大小=%d，期望 %d", iter, len(union), len(reqs))
		}

		// 确定性：同一输入重复运行结果相同。
		if diff := cmp.Diff(got, Match(mods, reqs)); diff != "" {
			t.Fatalf("iter=%d 重复运行结果不同：\n%s", iter, diff)
		}
	}
}

func TestMatch_ConcurrentRunsAreIsolated(t *testing.T) {
	reqs := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		reqs = append(reqs, fmt.Sprintf("R%03d", i))
	}
	want := Match(reqs, reqs)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := Match(reqs, reqs)
			if got.UnmatchedCount != 0 || len(got.Leftover) != 0 {
				errs <- fmt.Sprintf("并发运行之间发生了池共享：unmatched=%d leftover=%d", got.UnmatchedCount, len(got.Leftover))
				return
			}
			if !cmp.Equal(want, got) {
				errs <- "并发运行结果不一致"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}
