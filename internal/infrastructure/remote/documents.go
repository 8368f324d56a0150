package remote

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/ports"
)

// ProcessDocument uploads one file as multipart field "file".
func (c *Client) ProcessDocument(ctx context.Context, token string, file domain.UploadItem) (*ports.Download, error) {
	req := c.request(ctx, token)
	closers, err := attach(req, "file", file)
	defer closeAll(closers)
	if err != nil {
		return nil, err
	}
	return c.download("process_document", "/process-document", req)
}

// AnalyzeBills uploads every file under repeated purchase_files / sales_files
// fields, in order, with auto_detect=true.
func (c *Client) AnalyzeBills(ctx context.Context, token string, purchase, sales []domain.UploadItem) (*ports.Download, error) {
	req := c.request(ctx, token).SetMultipartFormData(map[string]string{"auto_detect": "true"})

	var closers []io.Closer
	defer func() { closeAll(closers) }()
	for _, group := range []struct {
		field string
		items []domain.UploadItem
	}{
		{"purchase_files", purchase},
		{"sales_files", sales},
	} {
		opened, err := attach(req, group.field, group.items...)
		closers = append(closers, opened...)
		if err != nil {
			return nil, err
		}
	}
	return c.download("analyze_bills", "/analyze-bills", req)
}

// download posts req and hands back the unread body of a 2xx response.
func (c *Client) download(op, path string, req *resty.Request) (*ports.Download, error) {
	resp, err := req.SetDoNotParseResponse(true).Post(path)
	if err != nil {
		return nil, c.transportError(op, err)
	}
	body := resp.RawBody()
	if resp.IsError() {
		defer body.Close()
		payload, _ := io.ReadAll(io.LimitReader(body, 1<<20))
		return nil, c.statusError(op, resp.StatusCode(), resp.Status(), payload)
	}

	c.log.Debug().Str("operation", op).Int("status", resp.StatusCode()).Msg("download ready")
	return &ports.Download{
		Filename:    dispositionFilename(resp.Header().Get("Content-Disposition")),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        body,
	}, nil
}

func attach(req *resty.Request, field string, items ...domain.UploadItem) ([]io.Closer, error) {
	closers := make([]io.Closer, 0, len(items))
	for _, it := range items {
		if it.Open == nil {
			return closers, &domain.AuthError{Kind: domain.KindValidation, Message: fmt.Sprintf("%s: %v", it.Name, domain.ErrNoContent)}
		}
		rc, err := it.Open()
		if err != nil {
			return closers, &domain.AuthError{Kind: domain.KindValidation, Message: fmt.Sprintf("open %s: %v", it.Name, err)}
		}
		closers = append(closers, rc)
		contentType := it.MIME
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.SetMultipartField(field, it.Name, contentType, rc)
	}
	return closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

// dispositionFilename extracts the base name from a Content-Disposition
// header. filename* wins over filename; "" when neither is usable.
func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
