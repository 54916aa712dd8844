// Package sink renders audit tables and exemplar sections into output files.
package sink

import "github.com/KaramelBytes/dqaudit-cli/internal/audit"

// TableSink accepts a table under a sheet or section label.
type TableSink interface {
	WriteTable(sheet string, t audit.Table) error
}

// DocumentSink accepts free-form headed sections.
type DocumentSink interface {
	AddHeading(level int, text string)
	AddParagraph(text string)
}

// File is a sink that is persisted in one write.
type File interface {
	Save(path string) error
}
