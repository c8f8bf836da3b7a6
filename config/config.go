// Package config holds the option structs for the pointer analysis,
// the data-dependence engine, the control-dependence engine, and the
// slicer.
package config

import (
	"fmt"

	"github.com/mchalupa/dgo/offset"
)

// PTAAnalysisType selects a pointer-analysis flavor.
type PTAAnalysisType int

const (
	PTAFlowInsensitive PTAAnalysisType = iota
	PTAFlowSensitive
	PTAFlowSensitiveInvalidating
)

func (t PTAAnalysisType) String() string {
	switch t {
	case PTAFlowInsensitive:
		return "fi"
	case PTAFlowSensitive:
		return "fs"
	case PTAFlowSensitiveInvalidating:
		return "inv"
	default:
		return "unknown"
	}
}

// AllocationFunctionKind classifies a user-named function as one of
// the standard dynamic-allocation shapes.
type AllocationFunctionKind int

const (
	AllocMalloc AllocationFunctionKind = iota
	AllocCalloc
	AllocAlloca
	AllocRealloc
)

// PTAOptions configures the pointer analysis.
type PTAOptions struct {
	AnalysisType        PTAAnalysisType
	EntryFunction        string // default "main"
	FieldSensitivity     offset.Offset
	Threads              bool
	PreprocessGeps       bool
	AllocationFunctions  map[string]AllocationFunctionKind
	IsSVF                bool
}

// DefaultPTAOptions returns the documented defaults.
func DefaultPTAOptions() PTAOptions {
	return PTAOptions{
		AnalysisType:     PTAFlowInsensitive,
		EntryFunction:    "main",
		FieldSensitivity: offset.Unknown,
		PreprocessGeps:   true,
		AllocationFunctions: map[string]AllocationFunctionKind{
			"malloc":  AllocMalloc,
			"calloc":  AllocCalloc,
			"realloc": AllocRealloc,
		},
	}
}

// Validate returns a configuration error for combinations the engine
// cannot run: an SVF-style pointer analysis does not model threads,
// so pairing it with Threads=true is rejected here rather than left
// to panic deep in the solver.
func (o PTAOptions) Validate() error {
	if o.EntryFunction == "" {
		return fmt.Errorf("config: entry function must not be empty")
	}
	if o.IsSVF && o.Threads {
		return fmt.Errorf("config: SVF pointer analysis does not support threads=true")
	}
	return nil
}

// UndefinedFunsBehavior is a bitmask describing how the data-dependence
// engine treats calls to functions with no body and no model.
type UndefinedFunsBehavior uint8

const (
	UFPure UndefinedFunsBehavior = 1 << iota
	UFReadAny
	UFReadArgs
	UFWriteAny
	UFWriteArgs
)

// FunctionModelArgRef is either a concrete byte offset or a reference
// to another argument's runtime integer value ("#N"), or unknown ("?").
type FunctionModelArgRef struct {
	Concrete bool
	Value    uint64
	ArgRef   int // valid iff !Concrete && !Unknown
	Unknown  bool
}

func Const(v uint64) FunctionModelArgRef { return FunctionModelArgRef{Concrete: true, Value: v} }
func ArgRef(i int) FunctionModelArgRef   { return FunctionModelArgRef{ArgRef: i} }
func UnknownRef() FunctionModelArgRef    { return FunctionModelArgRef{Unknown: true} }

// FunctionModelEntry is one def/use clause of a function model: arg
// #Index is defined or used over [From, To).
type FunctionModelEntry struct {
	IsDef      bool
	Index      int
	From, To   FunctionModelArgRef
}

// FunctionModel is the full set of def/use clauses for one external
// function name.
type FunctionModel struct {
	Name    string
	Entries []FunctionModelEntry
}

// DDAOptions configures the data-dependence engine.
type DDAOptions struct {
	AnalysisType         DDAAnalysisType
	StrongUpdateUnknown  bool
	MaxSetSize           offset.Offset
	Threads              bool
	UndefinedFunsBehavior UndefinedFunsBehavior
	FunctionModels       map[string]FunctionModel
	MaxIterations        int // not read: the dda fixpoint loops always run to convergence
}

type DDAAnalysisType int

const (
	DDAReachingDefinitions DDAAnalysisType = iota
	DDAMemorySSA
)

// DefaultDDAOptions returns the documented defaults. FunctionModels is
// left empty: no built-in function-model table is installed, so a call
// to a body-less function falls back to UndefinedFunsBehavior (memcpy,
// memmove and memset are handled as MEMCPY nodes instead).
func DefaultDDAOptions() DDAOptions {
	return DDAOptions{
		AnalysisType:          DDAReachingDefinitions,
		UndefinedFunsBehavior: UFWriteArgs | UFReadArgs,
		MaxSetSize:            offset.Unknown,
	}
}

// CDAlgorithm selects a control-dependence flavor.
type CDAlgorithm int

const (
	CDClassic CDAlgorithm = iota
	CDNTSCD
	CDNTSCD2
	CDNTSCDRanganath
	CDNTSCDLegacy
)

// CDOptions configures the control-dependence engine.
type CDOptions struct {
	Algorithm            CDAlgorithm
	Interprocedural      bool
	TerminationSensitive bool
}

// DefaultCDOptions returns the documented defaults.
func DefaultCDOptions() CDOptions {
	return CDOptions{Algorithm: CDClassic, Interprocedural: true}
}

// SlicerOptions configures the slicer and the analyses it drives.
type SlicerOptions struct {
	PTA                   PTAOptions
	DDA                   DDAOptions
	CD                    CDOptions
	PreservedFunctions    []string
	SlicingCriteria       string // "line:col" or "function:line:col"
	LegacySlicingCriteria string // "func#bb#n"
	ForwardSlicing        bool
	RemoveSlicingCriteria bool
	CriteriaAreNextInstr  bool
	InputFile             string
	OutputFile            string
}

// Validate aggregates the validation of the nested option structs.
func (o SlicerOptions) Validate() error {
	if err := o.PTA.Validate(); err != nil {
		return err
	}
	if o.SlicingCriteria == "" && o.LegacySlicingCriteria == "" {
		return fmt.Errorf("config: no slicing criteria given")
	}
	return nil
}
