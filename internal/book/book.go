package book

// Document is an extracted book, one Page per physical page.
type Document struct {
	Source string // Identifier used in logs and errors (usually the filename)
	Title  string // Document title (from metadata, first heading, or filename)
	Pages  []Page
}

// Page is the text of a single source page.
type Page struct {
	Content  string         `json:"page_content"`
	Label    int            `json:"page_label"` // 1-based physical page number
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chapter is one entry of a table of contents.
type Chapter struct {
	Name      string `json:"name" yaml:"name"`
	Number    int    `json:"number" yaml:"number"`
	StartPage int    `json:"start_page" yaml:"start_page"`
}

// TableOfContents lists chapters in ascending start page order.
// An empty table means no chapter attribution.
type TableOfContents struct {
	Chapters []Chapter `json:"chapters" yaml:"chapters"`
}

// Empty reports whether the table carries no chapters.
func (t TableOfContents) Empty() bool {
	return len(t.Chapters) == 0
}

// Fragment is a bounded piece of page text in flight between chunking stages.
type Fragment struct {
	Content   string
	PageLabel int
	Metadata  map[string]any
}

// Chunk is an embedded, chapter- and page-tagged piece of a document.
type Chunk struct {
	Content       string    `json:"content"`
	Embedding     []float32 `json:"embedding"`
	PageNumber    int       `json:"page_number"`
	ChapterNumber int       `json:"chapter_number"`
}

// CloneMetadata returns a shallow copy of m, or nil when m is empty.
func CloneMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
