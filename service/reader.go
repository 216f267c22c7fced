package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tieubaoca/tables-retriever/types"
)

// FlatReader loads a file as a single document without interpreting it.
type FlatReader struct{}

func NewFlatReader() *FlatReader {
	return &FlatReader{}
}

// LoadData reads the file at path into one document.
func (r *FlatReader) LoadData(path string) ([]types.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return []types.Document{
		{
			ID:   uuid.NewString(),
			Text: string(content),
			Metadata: map[string]any{
				types.MetadataFileName:  filepath.Base(path),
				types.MetadataExtension: strings.ToLower(filepath.Ext(path)),
				types.MetadataFilePath:  path,
			},
		},
	}, nil
}
