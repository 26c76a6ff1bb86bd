// Package zero runs compiled Cairo Zero programs: the classic
// cairo-lang-compiled JSON format (data array of felt-encoded
// instructions, named identifiers, optional hints) end to end through
// the VM (spec §2 "program", §4.10).
package zero

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

// compiledProgram mirrors the subset of cairo-lang's compiled JSON output
// this runner consumes. Debug info and attribute lists are intentionally
// not modeled -- bit-exact compatibility with the Python compiler's full
// output schema is out of scope.
type compiledProgram struct {
	Data        []string                    `json:"data"`
	Builtins    []string                    `json:"builtins"`
	Identifiers map[string]identifier       `json:"identifiers"`
	Hints       map[string][]json.RawMessage `json:"hints"`
}

type identifier struct {
	Type string `json:"type"`
	PC   *uint64 `json:"pc"`
}

// Program is the loaded, VM-ready form of a compiled Cairo Zero program.
type Program struct {
	Data     []memory.MaybeRelocatable
	Builtins []string

	MainOffset uint64
	Labels     map[string]uint64

	// Hints maps an instruction offset to its raw (unparsed) hint source
	// lines, preserved for a HintProcessor to act on.
	Hints map[uint64][]string
}

// LoadProgram parses a compiled Cairo Zero JSON program.
func LoadProgram(raw []byte) (*Program, error) {
	var cp compiledProgram
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("zero: decoding program json: %w", err)
	}

	data := make([]memory.MaybeRelocatable, len(cp.Data))
	for i, word := range cp.Data {
		felt, err := memory.FeltFromHex(word)
		if err != nil {
			return nil, fmt.Errorf("zero: decoding data[%d]=%q: %w", i, word, err)
		}
		data[i] = memory.NewMaybeRelocatableFelt(felt)
	}

	labels := make(map[string]uint64)
	var mainOffset uint64
	var mainFound bool
	for name, id := range cp.Identifiers {
		if id.PC == nil {
			continue
		}
		if strings.HasSuffix(name, ".__start__") {
			labels["__start__"] = *id.PC
		}
		if strings.HasSuffix(name, ".__end__") {
			labels["__end__"] = *id.PC
		}
		if strings.HasSuffix(name, "__main__.main") && id.Type == "function" {
			mainOffset = *id.PC
			mainFound = true
		}
		labels[name] = *id.PC
	}
	if !mainFound {
		return nil, ErrNoMainIdentifier
	}

	hints := make(map[uint64][]string)
	for offsetStr, rawHints := range cp.Hints {
		var offset uint64
		if _, err := fmt.Sscanf(offsetStr, "%d", &offset); err != nil {
			continue
		}
		lines := make([]string, len(rawHints))
		for i, h := range rawHints {
			lines[i] = string(h)
		}
		hints[offset] = lines
	}

	return &Program{
		Data:       data,
		Builtins:   cp.Builtins,
		MainOffset: mainOffset,
		Labels:     labels,
		Hints:      hints,
	}, nil
}
