package entity

// FormDocument is a loaded PDF form: the original bytes plus the text the
// loader pulled out of them. Content is never mutated after construction and
// Text is only present after a successful load.
type FormDocument struct {
	Filename  string   `json:"filename"`
	Content   []byte   `json:"-"`
	FileSize  int64    `json:"file_size"`
	PageCount int      `json:"page_count"`
	Text      string   `json:"-"`
	Warnings  []string `json:"warnings,omitempty"` // per-page extraction problems that were skipped
}
