package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AnalysisResult is the terminal record of an invocation. Exactly one of
// Analysis and Failure is set.
type AnalysisResult struct {
	Analysis *Analysis
	Failure  *Failure
}

// Succeeded wraps a success payload
func Succeeded(a *Analysis) *AnalysisResult {
	return &AnalysisResult{Analysis: a}
}

// Failed converts err into a failure result
func Failed(err error) *AnalysisResult {
	if err == nil {
		err = errors.New("unknown error")
	}
	f := &Failure{Error: err.Error(), Kind: KindOf(err)}
	var e *Error
	if errors.As(err, &e) {
		f.MissingPackages = e.Missing
	}
	return &AnalysisResult{Failure: f}
}

// Success reports whether the result carries an analysis
func (r *AnalysisResult) Success() bool {
	return r != nil && r.Analysis != nil && r.Failure == nil
}

type successWire struct {
	Success bool `json:"success"`
	*Analysis
}

type failureWire struct {
	Success bool `json:"success"`
	*Failure
}

// MarshalJSON flattens the populated variant next to a "success" flag
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Failure != nil:
		return json.Marshal(failureWire{Success: false, Failure: r.Failure})
	case r.Analysis != nil:
		a := *r.Analysis
		if a.Tags == nil {
			a.Tags = []string{}
		}
		if a.Objects == nil {
			a.Objects = []DetectedObject{}
		}
		if a.Colors == nil {
			a.Colors = []ColorSwatch{}
		}
		return json.Marshal(successWire{Success: true, Analysis: &a})
	}
	return nil, fmt.Errorf("analysis result has neither analysis nor failure")
}

// UnmarshalJSON restores the variant selected by the "success" flag
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	var head struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.Success == nil {
		return fmt.Errorf("missing success field")
	}
	*r = AnalysisResult{}
	if *head.Success {
		r.Analysis = &Analysis{}
		return json.Unmarshal(data, r.Analysis)
	}
	r.Failure = &Failure{}
	return json.Unmarshal(data, r.Failure)
}
