package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type CheckKind string

const (
	CheckFrontMatter CheckKind = "frontmatter"
	CheckPubDate     CheckKind = "pubdate"
	CheckAsset       CheckKind = "asset"
	CheckLink        CheckKind = "link"
	CheckFence       CheckKind = "fence"
	CheckSeo         CheckKind = "seo"
)

// Finding is one defect a check found in a document.
type Finding struct {
	CheckKind CheckKind `json:"check"`
	Severity  Severity  `json:"severity"`
	Line      *int      `json:"line"`
	Detail    string    `json:"detail"`
}

func (self Finding) String() string {
	if self.Line != nil {
		return fmt.Sprintf("%d: %s %s: %s", *self.Line, self.Severity, self.CheckKind, self.Detail)
	}
	return fmt.Sprintf("%s %s: %s", self.Severity, self.CheckKind, self.Detail)
}

// Report is one validation run over one document.
// BodyHash is the document's hash at the time of the run.
type Report struct {
	Id         uuid.UUID `json:"id"`
	DocumentId uuid.UUID `json:"documentId"`
	BodyHash   string    `json:"bodyHash"`
	CreatedAt  time.Time `json:"createdAt"`
	Findings   []Finding `json:"findings"`
}

func (self Report) Errors() (n int) {
	for _, finding := range self.Findings {
		if finding.Severity == SeverityError {
			n++
		}
	}
	return
}

func (self Report) Warnings() (n int) {
	for _, finding := range self.Findings {
		if finding.Severity == SeverityWarning {
			n++
		}
	}
	return
}

func (self Report) Ok() bool {
	return self.Errors() == 0
}

// FindingCount is one row of the statistics view: how many findings of
// one kind and severity exist across the latest report of every document.
type FindingCount struct {
	CheckKind CheckKind `json:"check"`
	Severity  Severity  `json:"severity"`
	Count     int       `json:"count"`
}

// ReportEvent is published whenever a report has been saved.
type ReportEvent struct {
	DocumentPath string `json:"documentPath"`
	Report       Report `json:"report"`
}
