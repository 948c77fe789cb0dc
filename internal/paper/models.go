package paper

// Section identifies one of the exam's timed parts. Order is fixed:
// VARC -> DILR -> QA.
type Section string

const (
	SectionVARC Section = "VARC"
	SectionDILR Section = "DILR"
	SectionQA   Section = "QA"
)

// SectionOrder is the strict delivery order of sections.
var SectionOrder = []Section{SectionVARC, SectionDILR, SectionQA}

// SectionRank is the section's position in SectionOrder; unknown sections
// sort last.
func SectionRank(s Section) int {
	return sectionRank(s)
}

func sectionRank(s Section) int {
	for i, sec := range SectionOrder {
		if sec == s {
			return i
		}
	}
	return len(SectionOrder)
}

// ParseSection normalizes a raw section name. ok is false for anything outside
// the canonical three.
func ParseSection(raw string) (Section, bool) {
	switch Section(raw) {
	case SectionVARC:
		return SectionVARC, true
	case SectionDILR:
		return SectionDILR, true
	case SectionQA:
		return SectionQA, true
	}
	return "", false
}

type QuestionType string

const (
	TypeMCQ  QuestionType = "MCQ"  // multiple choice, options A-D
	TypeTITA QuestionType = "TITA" // type-in-the-answer (numeric entry)
)

// SectionConfig is one entry of a paper's sections layout.
type SectionConfig struct {
	Name        Section `json:"name"`
	Questions   int     `json:"questions"`
	TimeMinutes int     `json:"time"`
	Marks       int     `json:"marks"`
}

type Paper struct {
	ID                   string          `json:"id"`
	Slug                 string          `json:"slug,omitempty"`
	Title                string          `json:"title"`
	Year                 int             `json:"year,omitempty"`
	Sections             []SectionConfig `json:"sections"`
	DurationMinutes      int             `json:"duration_minutes"`
	DefaultPositiveMarks float64         `json:"default_positive_marks"`
	DefaultNegativeMarks float64         `json:"default_negative_marks"`
	Published            bool            `json:"published"`

	// AttemptLimit caps terminal attempts per (mode, section) bucket.
	// 0 means unlimited.
	AttemptLimit int `json:"attempt_limit,omitempty"`

	AllowSectional   bool      `json:"allow_sectional_attempts"`
	SectionalAllowed []Section `json:"sectional_allowed_sections,omitempty"`
}

// SectionDurations returns the per-section time budget in seconds.
func (p Paper) SectionDurations() map[Section]int {
	out := make(map[Section]int, len(SectionOrder))
	for _, sec := range SectionOrder {
		out[sec] = 0
	}
	for _, sc := range p.Sections {
		if _, ok := ParseSection(string(sc.Name)); ok {
			out[sc.Name] = sc.TimeMinutes * 60
		}
	}
	return out
}

// TotalDurationSeconds is the whole-paper budget (sum of section budgets).
func (p Paper) TotalDurationSeconds() int {
	total := 0
	for _, v := range p.SectionDurations() {
		total += v
	}
	return total
}

// SectionalAllowedSections resolves the sections a sectional attempt may
// target, falling back to every configured section when the column was never
// populated (legacy papers).
func (p Paper) SectionalAllowedSections() []Section {
	available := make(map[Section]bool, len(p.Sections))
	for _, sc := range p.Sections {
		if _, ok := ParseSection(string(sc.Name)); ok {
			available[sc.Name] = true
		}
	}
	if len(available) == 0 {
		for _, sec := range SectionOrder {
			available[sec] = true
		}
	}

	out := make([]Section, 0, len(SectionOrder))
	for _, sec := range p.SectionalAllowed {
		if available[sec] {
			out = append(out, sec)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, sec := range SectionOrder {
		if available[sec] {
			out = append(out, sec)
		}
	}
	return out
}

// Context is the shared stimulus rendered alongside a composite set's
// questions (reading passage, data set).
type Context struct {
	ID           string  `json:"id"`
	PaperID      string  `json:"paper_id,omitempty"`
	Section      Section `json:"section"`
	Title        string  `json:"title,omitempty"`
	Body         string  `json:"content"`
	ImageURL     string  `json:"image_url,omitempty"`
	DisplayOrder int     `json:"display_order"`
	IsActive     bool    `json:"is_active"`
}

type Question struct {
	ID             string       `json:"id"`
	SetID          string       `json:"set_id,omitempty"`
	PaperID        string       `json:"paper_id"`
	Section        Section      `json:"section"`
	QuestionNumber int          `json:"question_number"`
	SequenceOrder  int          `json:"sequence_order,omitempty"`
	Text           string       `json:"question_text"`
	Type           QuestionType `json:"question_type"`
	Options        []string     `json:"options,omitempty"` // MCQ only

	// CorrectAnswer is stripped before serving a live exam; populated only for
	// scoring and results.
	CorrectAnswer string `json:"correct_answer,omitempty"`

	PositiveMarks float64 `json:"positive_marks"`
	NegativeMarks float64 `json:"negative_marks"`
	IsActive      bool    `json:"is_active"`

	// ContextID links legacy flat rows to their shared stimulus.
	ContextID string `json:"context_id,omitempty"`
	// Context is denormalized onto flattened questions for rendering; the
	// owning set remains the source of truth.
	Context *Context `json:"context,omitempty"`

	// ExamOrder is the 1-based position within the question's section in the
	// assembled paper. Derived, not stored.
	ExamOrder int `json:"exam_order,omitempty"`
}

const (
	SetTypeAtomic = "ATOMIC"
	SetTypeVARC   = "VARC"
	SetTypeDILR   = "DILR"
)

// QuestionSet is an ordered container within a section: a shared-context group
// (composite) or a single wrapped question (atomic).
type QuestionSet struct {
	ID              string     `json:"id"`
	PaperID         string     `json:"paper_id"`
	Section         Section    `json:"section"`
	SetType         string     `json:"set_type"`
	ContentLayout   string     `json:"content_layout,omitempty"`
	ContextTitle    string     `json:"context_title,omitempty"`
	ContextBody     string     `json:"context_body,omitempty"`
	ContextImageURL string     `json:"context_image_url,omitempty"`
	DisplayOrder    int        `json:"display_order"`
	QuestionCount   int        `json:"question_count"`
	IsActive        bool       `json:"is_active"`
	Questions       []Question `json:"questions"`
}

// Composite reports whether the set shares a context across its questions.
func (s QuestionSet) Composite() bool { return s.SetType != SetTypeAtomic }
