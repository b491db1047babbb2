package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/levenlabs/go-lflag"
	"github.com/octobridge/octobridge/pkg/types"
)

// ConfiguredSource sets up the snapshot Source based on flags.
func ConfiguredSource() Source {
	provider := lflag.String("source-provider", "file", "Snapshot source to use (available: file)")
	path := lflag.String("accounts-file", "", "Path to the JSON file with account snapshots")

	var s struct{ Source }

	lflag.Do(func() {
		switch *provider {
		case "file":
			if *path == "" {
				panic("accounts-file is required for the file source")
			}
			s.Source = NewFileSource(*path)
		default:
			panic(fmt.Sprintf("unknown source provider: %s", *provider))
		}
	})

	return &s
}

// FileSource reads account snapshots from a JSON file on every fetch, so
// edits to the file show up on the next refresh. It stands in for the real
// retailer client during local operation.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchAccounts implements Source.
func (f *FileSource) FetchAccounts(ctx context.Context) (map[string]types.AccountSnapshot, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file %s: %w", f.path, err)
	}
	var accounts map[string]types.AccountSnapshot
	if err := json.Unmarshal(b, &accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts file %s: %w", f.path, err)
	}
	return accounts, nil
}
