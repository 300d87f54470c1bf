package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/reqmatch/internal/config"
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError 让子命令携带退出码返回，而不是在深处调用 os.Exit。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type rootFlags struct {
	configPath string
	verbose    bool
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "错误：%v\n", ee.err)
		}
		return ee.code
	}
	// cobra 的参数/用法错误。
	fmt.Fprintf(stderr, "参数错误：%v\n", err)
	return 2
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:           "reqmatch",
		Short:         "二级模块与需求名称对账工具",
		Long:          "reqmatch 读取表格 A 列（二级模块）与 D 列（需求名称），按完全相同的文本一对一匹配，输出带标注的结果工作簿。",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rf.configPath, "config", "", "配置文件路径（默认依次尝试 ./reqmatch.yaml、reqmatch.yml、reqmatch.json）")
	root.PersistentFlags().BoolVarP(&rf.verbose, "verbose", "v", false, "输出 debug 日志")

	root.AddCommand(
		newServeCmd(rf, stdout, stderr),
		newMatchCmd(rf, stdout, stderr),
		newWatchCmd(rf, stdout, stderr),
	)
	return root
}

// loadConfig 读取生效配置；失败时返回退出码 1。
func loadConfig(cli config.CLIArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, &exitError{code: 1, err: fmt.Errorf("读取当前目录失败：%w", err)}
	}
	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return config.EffectiveConfig{}, &exitError{code: 1, err: err}
	}
	return eff, nil
}

// newLogger 构造写到 w 的 JSON 日志；floor 用于 CLI 批处理时压低 info 噪音。
func newLogger(level string, w io.Writer, floor zapcore.Level) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if lvl < floor {
		lvl = floor
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zap.New(core)
}
