// Package hintrunner defines the execution-scope stack and hint dispatch
// contract the VM consults before each step. Hint bodies themselves
// (parsing a program's hint code and executing it) are out of scope here;
// what's modeled is the stack discipline hints rely on to carry state
// between steps (spec §4 "hints", Non-goals on hint-language parsing).
package hintrunner

import (
	"errors"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

var ErrEmptyScopeStack = errors.New("hintrunner: scope stack is empty")

// ExecutionScopes is a stack of named variable scopes a hint can push,
// read, and pop -- mirroring how nested hint scopes share dict/list state
// in a real Cairo run.
type ExecutionScopes struct {
	scopes []map[string]any
}

func NewExecutionScopes() *ExecutionScopes {
	return &ExecutionScopes{scopes: []map[string]any{make(map[string]any)}}
}

func (es *ExecutionScopes) Enter() {
	es.scopes = append(es.scopes, make(map[string]any))
}

func (es *ExecutionScopes) Exit() error {
	if len(es.scopes) <= 1 {
		return ErrEmptyScopeStack
	}
	es.scopes = es.scopes[:len(es.scopes)-1]
	return nil
}

func (es *ExecutionScopes) Current() map[string]any {
	return es.scopes[len(es.scopes)-1]
}

func (es *ExecutionScopes) Get(name string) (any, bool) {
	for i := len(es.scopes) - 1; i >= 0; i-- {
		if v, ok := es.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (es *ExecutionScopes) Set(name string, value any) {
	es.Current()[name] = value
}

// HintData is the (already-located) hint attached to one program PC, ready
// for a HintProcessor to execute against the current register/memory
// state.
type HintData struct {
	PC   memory.Relocatable
	Code string
}

// HintProcessor executes the hints scheduled at pc, if any, before the
// VM's normal fetch-decode-execute step runs (spec §4 step loop
// "run hints before fetch").
type HintProcessor interface {
	ExecuteHints(pc memory.Relocatable, scopes *ExecutionScopes) error
}

// NoOpProcessor is installed by default on a VirtualMachine constructed
// without an explicit hint processor: a Cairo Zero program with no
// compiled hints runs identically with or without one wired in.
type NoOpProcessor struct{}

func (NoOpProcessor) ExecuteHints(memory.Relocatable, *ExecutionScopes) error { return nil }
