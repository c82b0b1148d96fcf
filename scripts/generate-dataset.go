//go:build ignore

// Package main generates a synthetic JSONL dataset for benchmarks
// and manual pipeline runs.
// Usage: go run scripts/generate-dataset.go -docs 1000 -output testdata/dataset.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numDocs = flag.Int("docs", 1000, "Number of documents to generate")
	output  = flag.String("output", "testdata/dataset.jsonl", "Output JSONL path")
	seed    = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// Sentence fragments combined into docstring-style documents. The mix
// deliberately includes markup, code fences, and abbreviations so a
// generated dataset exercises the clean and split stages.
var openings = []string{
	"Returns the %s for the given %s.",
	"Computes a %s over the provided %s.",
	"%s implements the %s protocol.",
	"Parses the %s and reports the first %s found.",
	"Creates a new %s backed by the supplied %s.",
}

var details = []string{
	"The result is cached between calls.",
	"Callers must hold the lock, e.g. via Acquire().",
	"See RFC 3986, Sec. 3.1 for the accepted forms.",
	"An empty input yields a zero value, i.e. no error.",
	"Deprecated: use the context-aware variant instead.",
	"The <b>first</b> match wins; later entries are ignored.",
	"Complexity is O(n log n) in the number of entries.",
}

var codeBlocks = []string{
	"Example:\n\n```\nv, err := Parse(input)\nif err != nil {\n    return err\n}\n```\n",
	"Typical usage:\n\n    w := NewWriter(path)\n    defer w.Close()\n",
}

var nouns = []string{
	"checksum", "manifest", "tokenizer", "byte offset", "record set",
	"configuration", "sentence boundary", "worker pool", "index entry",
	"document stream",
}

type record struct {
	Docstring string `json:"docstring"`
	Repo      string `json:"repo"`
	Path      string `json:"path"`
}

func main() {
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	for i := 0; i < *numDocs; i++ {
		if err := enc.Encode(record{
			Docstring: makeDocstring(rng),
			Repo:      fmt.Sprintf("synthetic/repo-%02d", rng.Intn(20)),
			Path:      fmt.Sprintf("pkg/mod%03d/file%d.go", i%100, rng.Intn(10)),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "write record: %v\n", err)
			os.Exit(1)
		}
	}

	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "flush output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d documents in %s\n", *numDocs, *output)
}

// makeDocstring assembles one synthetic docstring: an opening sentence,
// a few detail sentences, and occasionally a code block.
func makeDocstring(rng *rand.Rand) string {
	opening := fmt.Sprintf(openings[rng.Intn(len(openings))],
		nouns[rng.Intn(len(nouns))], nouns[rng.Intn(len(nouns))])

	doc := opening
	for n := rng.Intn(4); n > 0; n-- {
		doc += " " + details[rng.Intn(len(details))]
	}
	if rng.Intn(5) == 0 {
		doc += "\n\n" + codeBlocks[rng.Intn(len(codeBlocks))]
	}
	return doc
}
