// Package httpapi 提供上传对账的 HTTP 接口。
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/John-Robertt/reqmatch/internal/infra/cache"
	"github.com/John-Robertt/reqmatch/internal/table"
	"github.com/John-Robertt/reqmatch/internal/table/formats"
)

const (
	DefaultVersion = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

// Config 是 HTTP 层需要的全部参数（由 config.EffectiveConfig 映射而来）。
type Config struct {
	MaxUploadBytes int64
	HeaderRows     int
	RequestTimeout time.Duration
	MaxConcurrent  int
	AllowedOrigins []string
	Version        string
}

// Server 持有处理请求所需的共享依赖。除 last-result 槽位外不保存任何请求间状态。
type Server struct {
	cfg  Config
	log  *zap.Logger
	reg  table.Registry
	slot *cache.Slot
	sem  *semaphore.Weighted
	now  func() time.Time
}

func New(cfg Config, log *zap.Logger, slot *cache.Slot) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if slot == nil {
		slot = cache.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	reg, err := formats.Default()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:  cfg,
		log:  log,
		reg:  reg,
		slot: slot,
		sem:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		now:  time.Now,
	}, nil
}

// Handler 组装路由与中间件：request id → 访问日志 → CORS → 路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/sort-excel", s.withTimeout(s.limited(http.HandlerFunc(s.handleSortExcel))))
	mux.HandleFunc("GET /api/process-result", s.handleProcessResult)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition", HeaderRunID, HeaderMatchRate, HeaderRequestID},
	})
	return s.withRequestID(s.accessLog(c.Handler(mux)))
}

// Serve 在 addr 上监听并服务，ctx 结束时优雅关闭。
func Serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, h, log)
}

// ServeListener 与 Serve 相同，但使用调用方提供的 listener（便于测试绑定随机端口）。
func ServeListener(ctx context.Context, ln net.Listener, h http.Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP 服务已启动", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("HTTP 服务正在关闭")
		return srv.Shutdown(shCtx)
	})
	return g.Wait()
}
