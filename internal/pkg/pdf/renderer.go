package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/qs3c/dieta_server/config"
)

var ErrEmptyBody = errors.New("document body is empty")

// Document 渲染结果，文件由调用方负责删除
type Document struct {
	Path string
	Size int64
}

// Bytes 读取文档内容
func (d *Document) Bytes() ([]byte, error) {
	return os.ReadFile(d.Path)
}

// Remove 删除临时文件，重复调用安全
func (d *Document) Remove() error {
	if d == nil || d.Path == "" {
		return nil
	}
	if err := os.Remove(d.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type Renderer struct {
	dir      string
	owned    bool
	fontSize float64
}

// NewRenderer 未配置 temp_dir 时为当前进程创建独立的临时目录，Close 时删除
func NewRenderer(cfg config.RenderConfig) (*Renderer, error) {
	dir := cfg.TempDir
	owned := dir == ""
	if owned {
		d, err := os.MkdirTemp("", "dieta-render-")
		if err != nil {
			return nil, fmt.Errorf("failed to create render dir: %w", err)
		}
		dir = d
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create render dir: %w", err)
	}

	fontSize := cfg.FontSize
	if fontSize <= 0 {
		fontSize = 11
	}
	return &Renderer{dir: dir, owned: owned, fontSize: fontSize}, nil
}

func (r *Renderer) Dir() string {
	return r.dir
}

// Close 删除进程自建的临时目录，配置的 temp_dir 保留
func (r *Renderer) Close() error {
	if !r.owned {
		return nil
	}
	return os.RemoveAll(r.dir)
}

// Render 生成 A4 文档：居中粗体标题，正文两端对齐。
// 返回前文件已落盘并关闭。
func (r *Renderer) Render(title, body string) (*Document, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", r.fontSize+7)
	pdf.CellFormat(0, 12, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	lineHeight := r.fontSize * 0.55
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			pdf.Ln(lineHeight / 2)
		case strings.HasPrefix(line, "#"):
			pdf.SetFont("Helvetica", "B", r.fontSize+2)
			pdf.MultiCell(0, lineHeight+1, tr(strings.TrimSpace(strings.TrimLeft(line, "#"))), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", r.fontSize)
			pdf.MultiCell(0, lineHeight, tr(strings.ReplaceAll(line, "**", "")), "", "J", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to layout document: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return r.write(buf.Bytes())
}

func (r *Renderer) write(data []byte) (*Document, error) {
	f, err := os.CreateTemp(r.dir, "plan-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create document file: %w", err)
	}
	doc := &Document{Path: f.Name()}

	if _, err := f.Write(data); err != nil {
		f.Close()
		doc.Remove()
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		doc.Remove()
		return nil, fmt.Errorf("failed to sync document: %w", err)
	}
	if err := f.Close(); err != nil {
		doc.Remove()
		return nil, fmt.Errorf("failed to close document: %w", err)
	}

	doc.Size = int64(len(data))
	return doc, nil
}
