// Package assist implements the "generate From impl for enum variant"
// assist: it classifies the variant under the cursor, skips variants whose
// field type already converts into the enum, and synthesizes the impl.
//
// Every function is pure over an immutable syntax tree and a read-only
// semantic model, so calls are safe from any number of goroutines.
package assist

import (
	"github.com/Sumatoshi-tech/rustassist/pkg/semantic"
	"github.com/Sumatoshi-tech/rustassist/pkg/syntax"
	"github.com/Sumatoshi-tech/rustassist/pkg/textedit"
)

// Assist metadata.
const (
	ID    = "generate_from_impl_for_enum"
	Label = "Generate `From` impl for this enum variant"
)

// Kind groups assists for hosts that filter them.
type Kind string

// KindGenerate marks assists that add new code.
const KindGenerate Kind = "generate"

// Reason explains the outcome of an evaluation. It is informational only;
// callers of Propose see presence or absence of a proposal.
type Reason string

// Evaluation outcomes.
const (
	ReasonApplicable         Reason = "applicable"
	ReasonNoVariant          Reason = "no_variant"
	ReasonNoEnumName         Reason = "no_enum_name"
	ReasonNoVariantName      Reason = "no_variant_name"
	ReasonUnitVariant        Reason = "unit_variant"
	ReasonFieldCount         Reason = "field_count"
	ReasonMissingField       Reason = "missing_field"
	ReasonAlreadyImplemented Reason = "already_implemented"
)

// Reasons lists every Reason, applicable first.
var Reasons = []Reason{
	ReasonApplicable,
	ReasonNoVariant,
	ReasonNoEnumName,
	ReasonNoVariantName,
	ReasonUnitVariant,
	ReasonFieldCount,
	ReasonMissingField,
	ReasonAlreadyImplemented,
}

// Applicable reports whether the reason stands for a proposal.
func (r Reason) Applicable() bool {
	return r == ReasonApplicable
}

// Proposal is the offered change: one insertion.
type Proposal struct {
	ID              string           `json:"id"               yaml:"id"`
	Kind            Kind             `json:"kind"             yaml:"kind"`
	Label           string           `json:"label"            yaml:"label"`
	ApplicableRange syntax.TextRange `json:"applicable_range" yaml:"applicable_range"`
	InsertionOffset int              `json:"insertion_offset" yaml:"insertion_offset"`
	InsertedText    string           `json:"inserted_text"    yaml:"inserted_text"`
}

// Edit returns the proposal as a text edit.
func (p *Proposal) Edit() textedit.Edit {
	return textedit.Insert(p.InsertionOffset, p.InsertedText)
}

// Evaluate runs classification, duplicate detection and synthesis, and
// reports why no proposal was produced when it returns nil.
func Evaluate(file *syntax.File, offset int, sem semantic.Semantics) (*Proposal, Reason) {
	classified, reason := Classify(file, offset)
	if classified == nil {
		return nil, reason
	}

	return evaluateClassified(classified, sem)
}

// EvaluateVariant is Evaluate for a variant already located by the caller.
func EvaluateVariant(variant *syntax.Variant, sem semantic.Semantics) (*Proposal, Reason) {
	classified, reason := ClassifyVariant(variant)
	if classified == nil {
		return nil, reason
	}

	return evaluateClassified(classified, sem)
}

func evaluateClassified(classified *Classified, sem semantic.Semantics) (*Proposal, Reason) {
	if AlreadyConverts(classified, sem) {
		return nil, ReasonAlreadyImplemented
	}

	edit := Synthesize(classified)

	return &Proposal{
		ID:              ID,
		Kind:            KindGenerate,
		Label:           Label,
		ApplicableRange: classified.Range,
		InsertionOffset: edit.Offset,
		InsertedText:    edit.Text,
	}, ReasonApplicable
}

// Propose returns the proposal for the cursor at offset in file, if any.
func Propose(file *syntax.File, offset int, sem semantic.Semantics) (*Proposal, bool) {
	proposal, _ := Evaluate(file, offset, sem)

	return proposal, proposal != nil
}
