// Package dataset loads document records from JSONL or plain-text
// sources. It streams records in index order over a channel, skipping
// malformed rows while counting them, so one bad line never sinks a
// multi-gigabyte run.
package dataset

// Format identifies how a source file is decoded.
type Format string

const (
	// FormatAuto picks the format per file from its extension.
	FormatAuto Format = "auto"
	// FormatJSONL decodes one JSON object per line.
	FormatJSONL Format = "jsonl"
	// FormatText treats each file as a single document.
	FormatText Format = "text"
)

// Record is one document as loaded from the dataset.
type Record struct {
	// Index is the document's position in the corpus, assigned
	// sequentially across files in load order.
	Index int

	// Text is the raw document body, possibly still carrying markup.
	Text string

	// Meta holds optional extra fields pulled from JSONL rows,
	// stringified. Nil for plain-text sources.
	Meta map[string]string
}

// LoadResult is returned from the loader channel. Exactly one of
// Record and Err is set.
type LoadResult struct {
	Record *Record
	Err    error
}

// Stats summarizes a completed load.
type Stats struct {
	// Files is the number of source files read.
	Files int
	// Records is the number of documents successfully loaded.
	Records int
	// Skipped counts malformed rows that were dropped.
	Skipped int
}

// Options configures a Loader.
type Options struct {
	// Path is a dataset file or a directory of dataset files.
	Path string

	// Format forces a decode format. FormatAuto (the default) selects
	// per file by extension.
	Format Format

	// TextField names the JSONL field holding the document body.
	// Defaults to "docstring".
	TextField string

	// MetaFields lists additional JSONL fields to carry into
	// Record.Meta.
	MetaFields []string

	// MaxDocuments stops the load after this many records (0 = all).
	MaxDocuments int
}
