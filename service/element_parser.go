package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/kart-io/logger"
	"github.com/tieubaoca/tables-retriever/types"
)

// ElementType classifies an extracted HTML element.
type ElementType string

const (
	ElementText  ElementType = "text"
	ElementTable ElementType = "table"
)

const maxColspan = 32

var (
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "template": true,
		"head": true, "svg": true, "iframe": true,
	}
	blockTags = map[string]bool{
		"address": true, "article": true, "aside": true, "blockquote": true,
		"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
		"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
		"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
		"hr": true, "li": true, "main": true, "nav": true, "ol": true,
		"p": true, "pre": true, "section": true, "ul": true, "title": true,
	}
)

// Element is one block of an HTML document, in document order.
type Element struct {
	ID      string
	Type    ElementType
	Text    string
	Table   *types.Table
	Summary *types.TableSummary
}

type ElementParserConfig struct {
	SummaryWorkers int
	MinTableRows   int
	MinTableCols   int
}

var DefaultElementParserConfig = ElementParserConfig{
	SummaryWorkers: 4,
	MinTableRows:   1,
	MinTableCols:   2,
}

// ElementNodeParser turns HTML documents into text nodes plus, for every
// embedded table, a summary index node pointing at a table node.
type ElementNodeParser struct {
	summarizer *TableSummarizer
	config     ElementParserConfig
}

func NewElementNodeParser(llm ChatProvider, config ElementParserConfig) *ElementNodeParser {
	if config.MinTableRows < 1 {
		config.MinTableRows = DefaultElementParserConfig.MinTableRows
	}
	if config.MinTableCols < 1 {
		config.MinTableCols = DefaultElementParserConfig.MinTableCols
	}
	return &ElementNodeParser{
		summarizer: NewTableSummarizer(llm, config.SummaryWorkers),
		config:     config,
	}
}

// GetNodesFromDocuments parses every document and returns all nodes.
func (p *ElementNodeParser) GetNodesFromDocuments(ctx context.Context, docs []types.Document) ([]*types.Node, error) {
	var nodes []*types.Node
	for i := range docs {
		doc := &docs[i]
		elements, err := p.ExtractElements(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to extract elements from %s: %w", doc.MetadataString(types.MetadataFileName), err)
		}
		if err := p.summarizeTables(ctx, elements); err != nil {
			return nil, err
		}
		docNodes := p.GetNodesFromElements(elements, doc)
		logger.Infow("parsed document",
			"file", doc.MetadataString(types.MetadataFileName),
			"elements", len(elements),
			"nodes", len(docNodes))
		nodes = append(nodes, docNodes...)
	}
	return nodes, nil
}

// ExtractElements walks the HTML body in document order. Tables that fail
// the size filter are returned as text elements.
func (p *ElementNodeParser) ExtractElements(html string) ([]Element, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	w := &elementWalker{parser: p}
	w.walk(root)
	w.flush()
	return w.elements, nil
}

func (p *ElementNodeParser) keepTable(table *types.Table) bool {
	return table.NumRows() >= p.config.MinTableRows && table.NumCols() >= p.config.MinTableCols
}

func (p *ElementNodeParser) summarizeTables(ctx context.Context, elements []Element) error {
	var tables []*types.Table
	var positions []int
	for i, el := range elements {
		if el.Type == ElementTable {
			tables = append(tables, el.Table)
			positions = append(positions, i)
		}
	}
	summaries, err := p.summarizer.SummarizeAll(ctx, tables)
	if err != nil {
		return err
	}
	for i, pos := range positions {
		elements[pos].Summary = summaries[i]
	}
	return nil
}

// GetNodesFromElements converts elements into linked nodes. Consecutive
// text elements are merged into one node.
func (p *ElementNodeParser) GetNodesFromElements(elements []Element, doc *types.Document) []*types.Node {
	var nodes []*types.Node
	var pending []string

	flushText := func() {
		if len(pending) == 0 {
			return
		}
		nodes = append(nodes, &types.Node{
			ID:   uuid.NewString(),
			Kind: types.NodeKindText,
			Text: strings.Join(pending, "\n"),
			Metadata: map[string]any{
				types.MetadataElementCount: len(pending),
			},
		})
		pending = nil
	}

	for _, el := range elements {
		if el.Type != ElementTable || el.Summary == nil {
			if el.Type == ElementTable {
				pending = append(pending, el.Table.Markdown())
			} else {
				pending = append(pending, el.Text)
			}
			continue
		}
		flushText()

		tableID := el.ID + "_table"
		nodes = append(nodes,
			&types.Node{
				ID:      el.ID + "_table_ref",
				Kind:    types.NodeKindIndex,
				Text:    el.Summary.IndexText(),
				IndexID: tableID,
				Metadata: map[string]any{
					types.MetadataColSchema: el.Summary.ColumnSchema(),
				},
			},
			&types.Node{
				ID:   tableID,
				Kind: types.NodeKindTable,
				Text: el.Summary.Summary + "\n" + el.Table.Markdown(),
				Metadata: map[string]any{
					types.MetadataTableCSV:     el.Table.CSV(),
					types.MetadataTableSummary: el.Summary.Summary,
				},
			},
		)
	}
	flushText()

	for i, node := range nodes {
		if doc != nil {
			node.SourceID = doc.ID
			if name := doc.MetadataString(types.MetadataFileName); name != "" {
				node.Metadata[types.MetadataFileName] = name
			}
		}
		if i > 0 {
			node.PrevID = nodes[i-1].ID
		}
		if i < len(nodes)-1 {
			node.NextID = nodes[i+1].ID
		}
	}
	return nodes
}

// GetBaseNodesAndMappings splits nodes into the top-level nodes to index
// and the nodes that are only reachable through an index node reference.
func (p *ElementNodeParser) GetBaseNodesAndMappings(nodes []*types.Node) ([]*types.Node, map[string]*types.Node) {
	byID := make(map[string]*types.Node, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	mappings := make(map[string]*types.Node)
	for _, node := range nodes {
		if !node.IsIndex() {
			continue
		}
		if target, ok := byID[node.IndexID]; ok {
			mappings[node.IndexID] = target
		} else {
			logger.Warnw("index node references an unknown node", "node_id", node.ID, "index_id", node.IndexID)
		}
	}

	base := make([]*types.Node, 0, len(nodes)-len(mappings))
	for _, node := range nodes {
		if _, mapped := mappings[node.ID]; !mapped {
			base = append(base, node)
		}
	}
	return base, mappings
}

type elementWalker struct {
	parser   *ElementNodeParser
	buf      strings.Builder
	elements []Element
}

func (w *elementWalker) walk(s *goquery.Selection) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			w.buf.WriteString(c.Text())
		case name == "br":
			w.buf.WriteString(" ")
		case skipTags[name], strings.HasPrefix(name, "#"):
		case name == "table":
			w.flush()
			w.addTable(c)
		case blockTags[name]:
			w.flush()
			w.walk(c)
			w.flush()
		default:
			w.walk(c)
		}
	})
}

func (w *elementWalker) flush() {
	text := normalizeSpace(w.buf.String())
	w.buf.Reset()
	if text == "" {
		return
	}
	w.elements = append(w.elements, Element{
		ID:   uuid.NewString(),
		Type: ElementText,
		Text: text,
	})
}

func (w *elementWalker) addTable(s *goquery.Selection) {
	table := parseTable(s)
	if table.NumCols() == 0 {
		return
	}
	if !w.parser.keepTable(table) {
		w.elements = append(w.elements, Element{
			ID:   uuid.NewString(),
			Type: ElementText,
			Text: tableAsText(table),
		})
		return
	}
	w.elements = append(w.elements, Element{
		ID:    uuid.NewString(),
		Type:  ElementTable,
		Table: table,
	})
}

// parseTable reads the rows owned by s, ignoring rows of nested tables.
// A thead row, or a leading row made only of th cells, becomes the header.
func parseTable(s *goquery.Selection) *types.Table {
	table := &types.Table{
		Caption: normalizeSpace(s.ChildrenFiltered("caption").First().Text()),
	}

	rows := s.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(s)
	})
	rows.Each(func(i int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		var values []string
		cells.Each(func(_ int, cell *goquery.Selection) {
			text := normalizeSpace(cell.Text())
			span := 1
			if v, ok := cell.Attr("colspan"); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 1 {
					span = min(n, maxColspan)
				}
			}
			for range span {
				values = append(values, text)
			}
		})
		if len(values) == 0 {
			return
		}

		inHead := tr.ParentsFiltered("thead").Length() > 0
		allHeaderCells := cells.Length() == cells.Filter("th").Length()
		if table.Header == nil && len(table.Rows) == 0 && (inHead || allHeaderCells) {
			table.Header = values
			return
		}
		if isEmptyRow(values) {
			return
		}
		table.Rows = append(table.Rows, values)
	})
	return table
}

func tableAsText(table *types.Table) string {
	var lines []string
	if table.Caption != "" {
		lines = append(lines, table.Caption)
	}
	if len(table.Header) > 0 {
		lines = append(lines, strings.Join(table.Header, " "))
	}
	for _, row := range table.Rows {
		lines = append(lines, strings.Join(row, " "))
	}
	return strings.Join(lines, "\n")
}

func isEmptyRow(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
