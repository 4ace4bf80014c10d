package reports

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bryanwahyu/scan-insight/internal/domain/findings"
)

// Source reads scanner reports laid out as {dir}/{category}/default.json.
type Source struct {
	Dir string
}

func NewSource(dir string) *Source { return &Source{Dir: dir} }

func (s *Source) Read(_ context.Context, category findings.Category) ([]byte, error) {
	path := category.ReportPath(s.Dir)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", findings.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
