package domain

import (
	"errors"
	"fmt"
)

// SubmissionKind selects the remote endpoint used for a submission.
type SubmissionKind string

const (
	KindSingle   SubmissionKind = "single"
	KindAnalysis SubmissionKind = "analysis"
)

const (
	DefaultSingleFilename   = "processed_document.xlsx"
	DefaultAnalysisFilename = "inventory_analysis.xlsx"
)

var (
	ErrEmptySubmission    = errors.New("submission needs at least one file")
	ErrSingleFileRequired = errors.New("single submission needs exactly one file")
	ErrUnknownSubmission  = errors.New("unknown submission kind")
)

// SubmissionRequest is either a single document or a purchase/sales analysis.
type SubmissionRequest struct {
	Kind     SubmissionKind
	File     *UploadItem
	Purchase []UploadItem
	Sales    []UploadItem
}

// SingleRequest builds a request for POST /process-document.
func SingleRequest(file UploadItem) SubmissionRequest {
	return SubmissionRequest{Kind: KindSingle, File: &file}
}

// AnalysisRequest builds a request for POST /analyze-bills.
func AnalysisRequest(purchase, sales []UploadItem) SubmissionRequest {
	return SubmissionRequest{Kind: KindAnalysis, Purchase: purchase, Sales: sales}
}

// Validate enforces the submission invariant. It never touches the network.
func (r SubmissionRequest) Validate() error {
	switch r.Kind {
	case KindSingle:
		if r.File == nil || len(r.Purchase) > 0 || len(r.Sales) > 0 {
			return ErrSingleFileRequired
		}
		return validateItems(*r.File)
	case KindAnalysis:
		if r.File != nil {
			return fmt.Errorf("%w: analysis takes purchase and sales lists", ErrUnknownSubmission)
		}
		if len(r.Purchase)+len(r.Sales) == 0 {
			return ErrEmptySubmission
		}
		if err := validateItems(r.Purchase...); err != nil {
			return err
		}
		return validateItems(r.Sales...)
	default:
		return ErrUnknownSubmission
	}
}

// DefaultFilename is used when the response carries no filename hint.
func (r SubmissionRequest) DefaultFilename() string {
	if r.Kind == KindAnalysis {
		return DefaultAnalysisFilename
	}
	return DefaultSingleFilename
}

// FileCount returns the number of files carried by the request.
func (r SubmissionRequest) FileCount() int {
	n := len(r.Purchase) + len(r.Sales)
	if r.File != nil {
		n++
	}
	return n
}

func validateItems(items ...UploadItem) error {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("%s: %w", it.Name, err)
		}
		if it.Open == nil {
			return fmt.Errorf("%s: %w", it.Name, ErrNoContent)
		}
	}
	return nil
}

// SubmissionResult is the terminal value of one workflow run.
type SubmissionResult struct {
	Success   bool
	Payload   []byte
	Filename  string
	SavedPath string
	Message   string
}

// Stage is the workflow's client-side stage marker.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageGenerating Stage = "generating"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// validTransitions defines the allowed stage transitions. Reset to idle from
// any stage is handled separately by the workflow.
var validTransitions = map[Stage][]Stage{
	StageIdle:       {StageUploading},
	StageUploading:  {StageProcessing, StageError},
	StageProcessing: {StageGenerating, StageError},
	StageGenerating: {StageComplete, StageError},
	StageComplete:   {StageIdle},
	StageError:      {StageIdle},
}

// CanTransitionTo reports whether a transition from s to next is valid.
func (s Stage) CanTransitionTo(next Stage) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InFlight reports whether a submission is outstanding in this stage.
func (s Stage) InFlight() bool {
	return s == StageUploading || s == StageProcessing || s == StageGenerating
}
