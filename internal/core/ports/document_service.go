package ports

import (
	"context"
	"io"

	"github.com/billsight/billsight-client/internal/core/domain"
)

// Download is a successful document response whose headers have arrived but
// whose body has not been read yet. Callers must close Body.
type Download struct {
	// Filename is the hint from Content-Disposition, or "" when absent.
	Filename    string
	ContentType string
	Body        io.ReadCloser
}

// DocumentAPI is the remote extraction contract. Errors are *domain.AuthError.
type DocumentAPI interface {
	ProcessDocument(ctx context.Context, token string, file domain.UploadItem) (*Download, error)
	AnalyzeBills(ctx context.Context, token string, purchase, sales []domain.UploadItem) (*Download, error)
	Health(ctx context.Context) error
}

// FileSaver performs the client-side "save as" of a finished payload and
// returns where it landed.
type FileSaver interface {
	Save(ctx context.Context, filename string, payload []byte) (string, error)
}
