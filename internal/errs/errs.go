// Package errs defines the failure taxonomy of the training pipeline.
//
// Every component reports failures as *Error values tagged with the stage
// that produced them and a Kind. Callers test the kind with errors.Is against
// the package sentinels and recover the stage with errors.As.
package errs

import (
	"errors"
	"fmt"
)

// Pipeline stages, in execution order.
const (
	StageConfig         = "config"
	StageIngestion      = "data_ingestion"
	StageTransformation = "data_transformation"
	StageSearch         = "model_search"
	StagePersistence    = "persistence"
	StageInference      = "inference"
)

type Kind int

const (
	KindInput Kind = iota + 1
	KindNotFitted
	KindSearch
	KindGate
	KindPersistence
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input_error"
	case KindNotFitted:
		return "not_fitted"
	case KindSearch:
		return "search_failure"
	case KindGate:
		return "gate_failure"
	case KindPersistence:
		return "persistence_error"
	case KindConfig:
		return "config_error"
	default:
		return "unknown"
	}
}

var (
	ErrInput         = errors.New("input error")
	ErrNotFitted     = errors.New("not fitted")
	ErrSearchFailure = errors.New("search failure")
	ErrGateFailure   = errors.New("gate failure")
	ErrPersistence   = errors.New("persistence error")
	ErrConfig        = errors.New("configuration error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInput:
		return ErrInput
	case KindNotFitted:
		return ErrNotFitted
	case KindSearch:
		return ErrSearchFailure
	case KindGate:
		return ErrGateFailure
	case KindPersistence:
		return ErrPersistence
	case KindConfig:
		return ErrConfig
	default:
		return nil
	}
}

// Error is a failure tagged with its originating stage.
type Error struct {
	Stage   string
	Kind    Kind
	Message string
	Cause   error
}

func New(stage string, kind Kind, message string, cause error) *Error {
	return &Error{Stage: stage, Kind: kind, Message: message, Cause: cause}
}

// Wrap tags err with stage and kind. An err that already is (or wraps) an
// *Error is returned unchanged so the original stage survives propagation.
func Wrap(stage string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return &Error{Stage: stage, Kind: kind, Message: err.Error(), Cause: err}
}

// Retag reports err as originating in stage. A tagged err keeps its kind,
// message and cause; a plain err is tagged with kind.
func Retag(stage string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if !errors.As(err, &tagged) {
		return &Error{Stage: stage, Kind: kind, Message: err.Error(), Cause: err}
	}
	if tagged.Stage == stage {
		return err
	}
	return &Error{Stage: stage, Kind: tagged.Kind, Message: tagged.Message, Cause: tagged.Cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Cause != nil && msg != e.Cause.Error() {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Stage, e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Stage, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return 0, false
}

// StageOf reports the stage of the first *Error in err's chain.
func StageOf(err error) string {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Stage
	}
	return ""
}
