package remotetest

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Upload records what a document endpoint received.
type Upload struct {
	// Files maps each multipart field to the file names sent under it, in order.
	Files map[string][]string
	// Sizes maps file name to received byte count.
	Sizes      map[string]int
	AutoDetect string
}

type documentStub struct {
	mu       sync.Mutex
	filename string
	payload  []byte
	failWith *echo.HTTPError
	hold     chan struct{}
	last     *Upload
}

func newDocumentStub() *documentStub {
	return &documentStub{payload: []byte("PK\x03\x04fake-xlsx")}
}

// SetDocumentResponse sets the spreadsheet returned by both document
// endpoints. An empty filename omits Content-Disposition.
func (s *Server) SetDocumentResponse(filename string, payload []byte) {
	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	s.docs.filename = filename
	s.docs.payload = payload
	s.docs.failWith = nil
}

// FailDocuments makes both document endpoints fail with status and detail.
func (s *Server) FailDocuments(status int, detail string) {
	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	s.docs.failWith = echo.NewHTTPError(status, detail)
}

// HoldDocuments blocks document requests until the returned func is called.
func (s *Server) HoldDocuments() (release func()) {
	ch := make(chan struct{})
	s.docs.mu.Lock()
	s.docs.hold = ch
	s.docs.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.docs.mu.Lock()
			if s.docs.hold == ch {
				s.docs.hold = nil
			}
			s.docs.mu.Unlock()
			close(ch)
		})
	}
}

// LastUpload returns the most recent document upload, or nil.
func (s *Server) LastUpload() *Upload {
	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	return s.docs.last
}

func (s *Server) processDocument(c echo.Context) error {
	return s.serveDocument(c, "file")
}

func (s *Server) analyzeBills(c echo.Context) error {
	return s.serveDocument(c, "purchase_files", "sales_files")
}

func (s *Server) serveDocument(c echo.Context, fields ...string) error {
	upload, err := readUpload(c, fields)
	if err != nil {
		return err
	}

	s.docs.mu.Lock()
	s.docs.last = upload
	hold := s.docs.hold
	s.docs.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	s.docs.mu.Lock()
	failWith, filename, payload := s.docs.failWith, s.docs.filename, s.docs.payload
	s.docs.mu.Unlock()

	if failWith != nil {
		return failWith
	}
	if filename != "" {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	}
	c.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	return c.Blob(http.StatusOK, xlsxContentType, payload)
}

func readUpload(c echo.Context, fields []string) (*Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnprocessableEntity, "expected multipart form data")
	}

	upload := &Upload{Files: make(map[string][]string), Sizes: make(map[string]int)}
	if v := form.Value["auto_detect"]; len(v) > 0 {
		upload.AutoDetect = v[0]
	}

	total := 0
	for _, field := range fields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("Error reading file '%s'", fh.Filename))
			}
			n, _ := io.Copy(io.Discard, f)
			_ = f.Close()
			upload.Files[field] = append(upload.Files[field], fh.Filename)
			upload.Sizes[fh.Filename] = int(n)
			total++
		}
	}
	if total == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "No valid bills were found. Please upload at least one valid Purchase or Sales bill.")
	}
	return upload, nil
}
