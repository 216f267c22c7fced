package types

// Metadata keys set by readers and parsers.
const (
	MetadataFileName     = "filename"
	MetadataExtension    = "extension"
	MetadataFilePath     = "file_path"
	MetadataTableCSV     = "table_csv"
	MetadataTableSummary = "table_summary"
	MetadataColSchema    = "col_schema"
	MetadataElementCount = "element_count"
)

// Document is the raw content of one loaded file.
type Document struct {
	ID       string         `bson:"_id" json:"id"`
	Text     string         `bson:"text" json:"text"`
	Metadata map[string]any `bson:"metadata" json:"metadata"`
}

// MetadataString returns the metadata value under key when it is a string.
func (d *Document) MetadataString(key string) string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata[key].(string)
	return s
}
