package domain

import (
	"fmt"
	"strings"
)

// PipelineStage is a base position in the lead pipeline.
type PipelineStage string

const (
	StageNewLead       PipelineStage = "New Lead"
	StageValidityCheck PipelineStage = "Validity Check"
	StageFirstMeeting  PipelineStage = "1st Meeting Done"
	StageVisitDemo     PipelineStage = "Customer Visit/Demo"
	StageProposal      PipelineStage = "Proposal"
	StageNegotiation   PipelineStage = "Negotiation"
	StageClosed        PipelineStage = "Closed"

	// StageActive is the single state of customers outside the pipeline.
	StageActive PipelineStage = "Active"
)

// Pipeline lists the lead stages in order.
var Pipeline = []PipelineStage{
	StageNewLead,
	StageValidityCheck,
	StageFirstMeeting,
	StageVisitDemo,
	StageProposal,
	StageNegotiation,
	StageClosed,
}

// KeepCurrentStage is sent by the visit form when the stage must not change.
const KeepCurrentStage = "keep_current"

// ClosingOutcome qualifies the Closed stage.
type ClosingOutcome string

const (
	OutcomeConverted    ClosingOutcome = "Converted"
	OutcomeNotConverted ClosingOutcome = "Not Converted"
)

// ParseClosingOutcome accepts both the stored form and the compact form
// used by API callers.
func ParseClosingOutcome(s string) (ClosingOutcome, error) {
	switch strings.TrimSpace(s) {
	case "Converted", "converted":
		return OutcomeConverted, nil
	case "Not Converted", "NotConverted", "not_converted":
		return OutcomeNotConverted, nil
	}
	return "", &ValidationError{Field: "outcome", Message: fmt.Sprintf("unknown closing outcome %q", s)}
}

const closedSeparator = " - "

// Stage is the tagged form of the stored stage string. Values that do not
// match a known stage keep their raw text so existing rows round-trip.
type Stage struct {
	Base    PipelineStage
	Outcome *ClosingOutcome
	raw     string
}

// NewStage returns a stage at base with no outcome.
func NewStage(base PipelineStage) Stage {
	return Stage{Base: base}
}

// ClosedStage returns the terminal stage with an outcome.
func ClosedStage(outcome ClosingOutcome) Stage {
	o := outcome
	return Stage{Base: StageClosed, Outcome: &o}
}

func ActiveStage() Stage {
	return Stage{Base: StageActive}
}

// ParseStage converts a stored stage string. A string that starts with a
// pipeline stage name lands in that stage's bucket.
func ParseStage(s string) Stage {
	if s == "" {
		return Stage{}
	}
	if PipelineStage(s) == StageActive {
		return ActiveStage()
	}
	if rest, ok := strings.CutPrefix(s, string(StageClosed)); ok {
		if rest == "" {
			return NewStage(StageClosed)
		}
		if tail, ok := strings.CutPrefix(rest, closedSeparator); ok {
			if outcome, err := ParseClosingOutcome(tail); err == nil && string(outcome) == tail {
				return ClosedStage(outcome)
			}
		}
		return Stage{Base: StageClosed, raw: s}
	}
	var best PipelineStage
	for _, p := range Pipeline {
		if strings.HasPrefix(s, string(p)) && len(p) > len(best) {
			best = p
		}
	}
	if best == "" {
		return Stage{raw: s}
	}
	if string(best) == s {
		return NewStage(best)
	}
	return Stage{Base: best, raw: s}
}

// String returns the stored representation.
func (s Stage) String() string {
	if s.raw != "" {
		return s.raw
	}
	if s.Base == StageClosed && s.Outcome != nil {
		return string(StageClosed) + closedSeparator + string(*s.Outcome)
	}
	return string(s.Base)
}

// Known reports whether the stage maps to a pipeline bucket or Active.
func (s Stage) Known() bool {
	return s.Base != ""
}

func (s Stage) IsZero() bool {
	return s.Base == "" && s.raw == ""
}

// InBucket reports whether s renders under bucket p.
func (s Stage) InBucket(p PipelineStage) bool {
	return s.Base != "" && s.Base == p
}

func (s Stage) IsClosed() bool {
	return s.Base == StageClosed
}

// Converted reports whether the stage is Closed with a Converted outcome.
func (s Stage) Converted() bool {
	return s.IsClosed() && s.Outcome != nil && *s.Outcome == OutcomeConverted
}

// Index is the zero-based pipeline position, or -1 outside the pipeline.
func (s Stage) Index() int {
	for i, p := range Pipeline {
		if s.Base == p {
			return i
		}
	}
	return -1
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	*s = ParseStage(string(b))
	return nil
}

// ApplyMeetingDelta adds delta to count, never going below zero.
func ApplyMeetingDelta(count, delta int) int {
	next := count + delta
	if next < 0 {
		return 0
	}
	return next
}
