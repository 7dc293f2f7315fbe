package docx

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

// Extractor reads paragraph text from word/document.xml.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractFile(_ context.Context, path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", &domain.DecodeError{Format: "DOCX", Err: err}
	}
	defer doc.Close()

	text, err := Paragraphs(doc.Editable().GetContent())
	if err != nil {
		return "", &domain.DecodeError{Format: "DOCX", Err: err}
	}
	return text, nil
}

// Paragraphs joins the text of every w:p element with newlines, keeping empty
// paragraphs so line positions match the document.
func Paragraphs(documentXML string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(documentXML))

	var (
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = true
			case "tab":
				if inPara {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				paragraphs = append(paragraphs, current.String())
				inPara = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && inPara {
				current.Write(t)
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
