package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/reqmatch/internal/app/planner"
	"github.com/John-Robertt/reqmatch/internal/app/run"
	"github.com/John-Robertt/reqmatch/internal/domain"
	"github.com/John-Robertt/reqmatch/internal/render"
	"github.com/John-Robertt/reqmatch/internal/scan"
)

const (
	CodeBusy     = "busy"
	CodeInternal = "internal"

	// multipart 表单除文件外的开销上限。
	formOverhead = 1 << 20
	// 超过该大小的表单部分落到临时文件。
	maxFormMemory = 32 << 20
)

// 上传接受的扩展名；.xls 只接受内容实际为 xlsx/HTML 的文件。
var uploadExts = map[string]struct{}{
	".xlsx": {}, ".xls": {}, ".xlsm": {}, ".csv": {}, ".html": {}, ".htm": {},
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type healthBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (s *Server) handleSortExcel(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(zap.String("request_id", RequestID(r.Context())))

	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, log, err)
		return
	}
	log.Info("开始处理文件", zap.String("file", name), zap.Int("bytes", len(data)))

	rr, err := run.Execute(r.Context(), run.Input{Name: name, Data: data}, run.Options{
		Registry:   &s.reg,
		HeaderRows: s.cfg.HeaderRows,
		Logger:     log,
	})
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	var buf bytes.Buffer
	asJSON := strings.EqualFold(r.URL.Query().Get("format"), "json")
	if asJSON {
		err = render.JSON(&buf, rr)
	} else {
		err = render.WriteWorkbook(&buf, rr.Report)
	}
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	s.slot.Put(rr)

	h := w.Header()
	h.Set(HeaderRunID, rr.ID)
	h.Set(HeaderMatchRate, strconv.FormatFloat(rr.Summary.MatchRate, 'f', 2, 64))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	if asJSON {
		h.Set("Content-Type", "application/json; charset=utf-8")
	} else {
		h.Set("Content-Type", render.ContentType)
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": downloadName(name),
		}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// downloadName 是结果工作簿的下载名：.xlsx 上传保持 sorted_<原文件名>，其他格式换成 .xlsx 扩展名。
func downloadName(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return scan.OutputPrefix + name
	}
	return planner.OutputStem(name) + ".xlsx"
}

// readUpload 校验并读出上传文件：字段存在、文件名非空、扩展名受支持、非空、不超过上限。
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", nil, s.tooLarge()
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return "", nil, domain.Errorf(domain.ErrCodeUploadInvalid, "没有文件")
		}
		return "", nil, domain.Errorf(domain.ErrCodeUploadInvalid, "上传数据无法解析：%v", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		// 浏览器未选文件时仍会提交 filename="" 的空部分，multipart 把它解析为普通字段。
		if _, ok := r.MultipartForm.Value["file"]; ok {
			return "", nil, domain.Errorf(domain.ErrCodeUploadInvalid, "没有选择文件")
		}
		return "", nil, domain.Errorf(domain.ErrCodeUploadInvalid, "没有文件")
	}
	defer f.Close()

	name := filepath.Base(strings.ReplaceAll(hdr.Filename, "\\", "/"))
	if strings.TrimSpace(hdr.Filename) == "" || name == "." || name == "/" {
		return "", nil, domain.Errorf(domain.ErrCodeUploadInvalid, "没有选择文件")
	}
	if _, ok := uploadExts[strings.ToLower(filepath.Ext(name))]; !ok {
		return "", nil, domain.Errorf(domain.ErrCodeUploadInvalid, "不支持的文件格式")
	}

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", nil, domain.Wrap(domain.ErrCodeUploadInvalid, err)
	}
	if len(data) == 0 {
		return "", nil, domain.Errorf(domain.ErrCodeUploadInvalid, "文件为空")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", nil, s.tooLarge()
	}
	return name, data, nil
}

func (s *Server) tooLarge() error {
	return domain.Errorf(domain.ErrCodeUploadInvalid, "文件大小超过%s限制", humanMB(s.cfg.MaxUploadBytes))
}

func humanMB(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d字节", n)
}

func (s *Server) handleProcessResult(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.slot.Summary()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "没有处理结果"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{
		Status:    "healthy",
		Timestamp: s.now().Format("2006-01-02T15:04:05.000000"),
		Version:   s.cfg.Version,
	})
}

// StatusFor 只依据 error_code 选择 HTTP 状态码。
func StatusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusFor(err)
	code := domain.Code(err)
	msg := err.Error()
	if code == "" {
		code = CodeInternal
		msg = "处理失败: " + msg
	}
	if status >= 500 {
		log.Error("处理失败", zap.String("error_code", code), zap.Error(err))
	} else {
		log.Info("请求无效", zap.String("error_code", code), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
