package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogFieldsUseFileKey(t *testing.T) {
	p := &Pack{source: "/tmp/page.html", stats: Stats{Nodes: 3, BaseNodes: 2, Tables: 1}}

	fields := p.logFields("top_k", 1)
	assert.Equal(t, []any{
		"file", "/tmp/page.html",
		"nodes", 3,
		"base_nodes", 2,
		"tables", 1,
		"top_k", 1,
	}, fields)
	assert.NotContains(t, fields, "source")
}
