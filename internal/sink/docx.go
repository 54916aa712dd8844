package sink

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/KaramelBytes/dqaudit-cli/internal/utils"
)

type paragraph struct {
	style string
	text  string
}

// Document builds a .docx file of headings, paragraphs and simple tables
// rendered as tab-separated lines.
type Document struct {
	paras []paragraph
}

// NewDocument returns a document whose first paragraph is a title.
func NewDocument(title string) *Document {
	d := &Document{}
	if title != "" {
		d.paras = append(d.paras, paragraph{style: "Title", text: title})
	}
	return d
}

// AddHeading adds a heading; level is clamped to 1..3.
func (d *Document) AddHeading(level int, text string) {
	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	d.paras = append(d.paras, paragraph{style: fmt.Sprintf("Heading%d", level), text: text})
}

// AddParagraph adds body text. Newlines start new paragraphs.
func (d *Document) AddParagraph(text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		d.paras = append(d.paras, paragraph{text: line})
	}
}

// WriteTable adds the table under a heading.
func (d *Document) WriteTable(sheet string, t audit.Table) error {
	d.AddHeading(2, sheet)
	if len(t.Header) > 0 {
		d.paras = append(d.paras, paragraph{text: strings.Join(t.Header, "\t")})
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = audit.Category(v)
		}
		d.paras = append(d.paras, paragraph{text: strings.Join(cells, "\t")})
	}
	return nil
}

// Len returns the number of paragraphs, headings included.
func (d *Document) Len() int { return len(d.paras) }

// Save writes the document atomically.
func (d *Document) Save(path string) error {
	b, err := d.Bytes()
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}

// Bytes renders the document package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := [][2]string{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", d.documentXML()},
	}
	for _, p := range parts {
		f, err := zw.Create(p[0])
		if err != nil {
			return nil, fmt.Errorf("docx part %s: %w", p[0], err)
		}
		if _, err := f.Write([]byte(p[1])); err != nil {
			return nil, fmt.Errorf("docx part %s: %w", p[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) documentXML() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range d.paras {
		sb.WriteString(`<w:p>`)
		if p.style != "" {
			fmt.Fprintf(&sb, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, p.style)
		}
		segments := strings.Split(p.text, "\t")
		sb.WriteString(`<w:r>`)
		for i, s := range segments {
			if i > 0 {
				sb.WriteString(`<w:tab/>`)
			}
			fmt.Fprintf(&sb, `<w:t xml:space="preserve">%s</w:t>`, escape(s))
		}
		sb.WriteString(`</w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

const docxContentTypes = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const docxRootRels = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const docxDocumentRels = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const docxStyles = xml.Header + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="48"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:rPr><w:b/></w:rPr></w:style>` +
	`</w:styles>`
