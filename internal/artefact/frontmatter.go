package artefact

import (
	"bytes"
	"strings"

	"github.com/sailctl/sailing/internal/errs"
	"gopkg.in/yaml.v3"
)

const fence = "---"

// document is the raw on-disk shape: a YAML front-matter block delimited by
// "---" fences followed by a markdown body. Kept separate from the typed
// Record so malformed front-matter can still be loaded as an empty map plus
// the whole file as body, per the store's tolerant failure semantics.
type document struct {
	FrontMatter map[string]interface{}
	Body        string
}

// parseDocument splits content into front-matter and body. A file with no
// opening fence is treated as having empty front-matter and the entire
// content as body (not an error — some hand-edited files lack one).
func parseDocument(content []byte) (*document, error) {
	text := string(content)
	if !strings.HasPrefix(text, fence) {
		return &document{FrontMatter: map[string]interface{}{}, Body: text}, nil
	}

	rest := text[len(fence):]
	rest = strings.TrimPrefix(rest, "\n")
	closeIdx := strings.Index(rest, "\n"+fence)
	if closeIdx == -1 {
		// Tolerate an unclosed fence by treating the whole thing as body;
		// the caller logs a warning and the entry is marked degraded.
		return &document{FrontMatter: map[string]interface{}{}, Body: text}, nil
	}

	fmText := rest[:closeIdx]
	bodyStart := closeIdx + len("\n"+fence)
	body := rest[bodyStart:]
	body = strings.TrimPrefix(body, "\n")

	var fm map[string]interface{}
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		return &document{FrontMatter: map[string]interface{}{}, Body: text}, nil
	}
	if fm == nil {
		fm = map[string]interface{}{}
	}
	return &document{FrontMatter: fm, Body: body}, nil
}

// renderDocument serializes front-matter and body back into the fenced
// format. It refuses to emit front-matter that fails to marshal rather than
// silently dropping fields.
func renderDocument(doc *document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fence)
	buf.WriteByte('\n')

	fmBytes, err := yaml.Marshal(doc.FrontMatter)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "artefact.renderDocument", "marshalling front-matter", err)
	}
	buf.Write(fmBytes)
	if !bytes.HasSuffix(fmBytes, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString(fence)
	buf.WriteByte('\n')
	if doc.Body != "" {
		buf.WriteByte('\n')
		buf.WriteString(strings.TrimPrefix(doc.Body, "\n"))
		if !strings.HasSuffix(doc.Body, "\n") {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}
