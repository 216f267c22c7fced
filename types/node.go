package types

import (
	"fmt"
	"strings"
)

// NodeKind classifies a parsed node.
type NodeKind string

const (
	NodeKindText  NodeKind = "text"
	NodeKindTable NodeKind = "table"
	NodeKindIndex NodeKind = "index"
)

// Node is a unit of parsed content. Index nodes reference another object
// (a node, a retriever or a query engine) through IndexID.
type Node struct {
	ID       string         `json:"id"`
	Kind     NodeKind       `json:"kind"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	IndexID  string         `json:"index_id,omitempty"`
	SourceID string         `json:"source_id,omitempty"`
	PrevID   string         `json:"prev_id,omitempty"`
	NextID   string         `json:"next_id,omitempty"`
}

// IsIndex reports whether n references another object.
func (n *Node) IsIndex() bool {
	return n.Kind == NodeKindIndex && n.IndexID != ""
}

func (n *Node) String() string {
	text := n.Text
	if runes := []rune(text); len(runes) > 80 {
		text = string(runes[:80]) + "..."
	}
	return fmt.Sprintf("Node(id=%s, kind=%s, text=%q)", n.ID, n.Kind, strings.TrimSpace(text))
}

// NodeWithScore pairs a node with its retrieval score.
type NodeWithScore struct {
	Node  *Node   `json:"node"`
	Score float64 `json:"score"`
}

// Table is a rectangular table extracted from a document.
type Table struct {
	Caption string     `json:"caption,omitempty"`
	Header  []string   `json:"header"`
	Rows    [][]string `json:"rows"`
}

// NumRows returns the number of body rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumCols returns the widest row width, header included.
func (t *Table) NumCols() int {
	cols := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return cols
}

// Markdown renders the table as a GitHub flavored markdown table.
func (t *Table) Markdown() string {
	cols := t.NumCols()
	if cols == 0 {
		return ""
	}
	header := t.Header
	if len(header) == 0 {
		header = make([]string, cols)
		for i := range header {
			header[i] = fmt.Sprintf("%d", i)
		}
	}

	var b strings.Builder
	writeMarkdownRow(&b, header, cols)
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		writeMarkdownRow(&b, row, cols)
	}
	return strings.TrimRight(b.String(), "\n")
}

// CSV renders the table as comma separated values, header first.
func (t *Table) CSV() string {
	var b strings.Builder
	if len(t.Header) > 0 {
		writeCSVRow(&b, t.Header)
	}
	for _, row := range t.Rows {
		writeCSVRow(&b, row)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeMarkdownRow(b *strings.Builder, cells []string, cols int) {
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		cell := ""
		if i < len(cells) {
			cell = strings.ReplaceAll(cells[i], "|", "\\|")
		}
		b.WriteString(" " + cell + " |")
	}
	b.WriteString("\n")
}

func writeCSVRow(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(",")
		}
		if strings.ContainsAny(cell, ",\"\n") {
			cell = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
		}
		b.WriteString(cell)
	}
	b.WriteString("\n")
}

// ColumnSummary describes one table column.
type ColumnSummary struct {
	Name    string `json:"col_name"`
	Type    string `json:"col_type"`
	Summary string `json:"summary"`
}

// TableSummary is the LLM produced caption of a table.
type TableSummary struct {
	Summary string          `json:"summary"`
	Columns []ColumnSummary `json:"columns"`
}

// IndexText renders the text embedded for a table's summary node.
func (s *TableSummary) IndexText() string {
	text := s.Summary
	if len(s.Columns) == 0 {
		return text
	}
	text += ",\nwith the following columns:\n"
	for _, col := range s.Columns {
		text += fmt.Sprintf("- %s: %s\n", col.Name, col.Summary)
	}
	return text
}

// ColumnSchema renders the column names and types, used as node metadata.
func (s *TableSummary) ColumnSchema() string {
	parts := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		parts = append(parts, fmt.Sprintf("Column: %s\nType: %s\nSummary: %s", col.Name, col.Type, col.Summary))
	}
	return strings.Join(parts, "\n\n")
}
