package source

import (
	"path/filepath"
	"strings"
)

// SourceFile represents a translation unit with its content and metadata.
// The lowering core reads it but never mutates it.
type SourceFile struct {
	Name    string   // Display name (e.g., "script.ts", "<stdin>", "<repl>")
	Path    string   // Full file path (empty for REPL/eval)
	Content string   // The source code content
	lines   []string // Cached split lines (lazy initialization)
}

// NewSourceFile creates a new source file.
func NewSourceFile(name, path, content string) *SourceFile {
	return &SourceFile{
		Name:    name,
		Path:    path,
		Content: content,
	}
}

// NewReplSource creates a source file for REPL input.
func NewReplSource(content string) *SourceFile {
	return &SourceFile{
		Name:    "<repl>",
		Path:    "",
		Content: content,
	}
}

// FromFile creates a SourceFile from a file path and content.
func FromFile(filePath, content string) *SourceFile {
	return NewSourceFile(filepath.Base(filePath), filePath, content)
}

// Lines returns the source split into lines (cached).
func (sf *SourceFile) Lines() []string {
	if sf.lines == nil {
		sf.lines = strings.Split(sf.Content, "\n")
	}
	return sf.lines
}

// Slice returns the source text in the byte range [pos, end).
// Out-of-range offsets are clamped rather than panicking; AST nodes built
// by hand often carry zero positions.
func (sf *SourceFile) Slice(pos, end int) string {
	if pos < 0 {
		pos = 0
	}
	if end > len(sf.Content) {
		end = len(sf.Content)
	}
	if pos >= end {
		return ""
	}
	return sf.Content[pos:end]
}

// LineCol converts a 0-based byte offset into a 1-based line/column pair.
func (sf *SourceFile) LineCol(pos int) (line, col int) {
	line, col = 1, 1
	if pos > len(sf.Content) {
		pos = len(sf.Content)
	}
	for i := 0; i < pos; i++ {
		if sf.Content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// DisplayPath returns the best path for display (prefers Path, falls back to Name).
func (sf *SourceFile) DisplayPath() string {
	if sf.Path != "" {
		return sf.Path
	}
	return sf.Name
}

// IsFile returns true if this represents an actual file (has a path).
func (sf *SourceFile) IsFile() bool {
	return sf.Path != ""
}
