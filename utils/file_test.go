package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHTMLFile(t *testing.T) {
	assert.True(t, IsHTMLFile("a/b/report.html"))
	assert.True(t, IsHTMLFile("REPORT.HTM"))
	assert.True(t, IsHTMLFile("x.xhtml"))
	assert.False(t, IsHTMLFile("notes.txt"))
	assert.False(t, IsHTMLFile("html"))
}

func TestGetFileNameWithoutExt(t *testing.T) {
	assert.Equal(t, "report", GetFileNameWithoutExt("/data/report.html"))
	assert.Equal(t, "archive.tar", GetFileNameWithoutExt("archive.tar.gz"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "hé...", TruncateString("héllo", 2))
}
