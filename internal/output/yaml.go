package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/pagesift/pagesift/pkg/document"
)

// YAMLWriter writes documents as YAML, separated as multiple documents in
// one stream.
type YAMLWriter struct {
	w   *bufio.Writer
	enc *yaml.Encoder
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	bw := bufio.NewWriter(w)
	enc := yaml.NewEncoder(bw)
	enc.SetIndent(2)
	return &YAMLWriter{w: bw, enc: enc}
}

// Write serializes one document.
func (w *YAMLWriter) Write(doc *document.Document) error {
	return w.enc.Encode(doc)
}

// Close finishes the YAML stream and flushes the buffer.
func (w *YAMLWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		return err
	}
	return w.w.Flush()
}
