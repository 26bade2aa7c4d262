package blob

import (
	"flowpanel/internal/infra/blob/fs"
)

// DefaultFSRoot is the artifact directory used when none is configured.
const DefaultFSRoot = fs.DefaultRoot

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	s, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return s, nil
}
