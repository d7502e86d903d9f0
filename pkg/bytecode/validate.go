package bytecode

import (
	"github.com/joomcode/errorx"
)

// Validate checks the structural integrity of the code section: every
// opcode is known, no operand is truncated, every constant index is in
// range, every address operand lands on an instruction boundary (or the
// end of the code), and no reserved slot was left unpatched.
//
// A failure means the generator or the loader is broken, so the error is
// an errorx IllegalState rather than a user-facing error.
func (p *Program) Validate() error {
	if n := p.Pending(); n > 0 {
		return errorx.IllegalState.New("%d reserved address slots were never patched", n)
	}

	instructions, err := p.Instructions()
	if err != nil {
		return errorx.IllegalState.Wrap(err, "corrupt instruction stream")
	}

	boundaries := make(map[uint64]struct{}, len(instructions)+1)
	for _, in := range instructions {
		boundaries[uint64(in.Offset)] = struct{}{}
	}
	boundaries[uint64(len(p.Code))] = struct{}{}

	for _, in := range instructions {
		for i, operand := range in.Operands {
			switch operand.Kind {
			case OperandString:
				if int(operand.Index) >= len(p.Constants) {
					return errorx.IllegalState.New("%s at %d: constant index %d out of range (len=%d)",
						in.Op, in.Offset, operand.Index, len(p.Constants))
				}
			case OperandAddress:
				if operand.Address == Unpatched {
					return errorx.IllegalState.New("%s at %d: address operand %d was never patched",
						in.Op, in.Offset, i)
				}
				if operand.Address == 0 && in.Op == OpTryBegin {
					// absent handler
					continue
				}
				if _, ok := boundaries[operand.Address]; !ok {
					return errorx.IllegalState.New("%s at %d: address %d is not an instruction boundary",
						in.Op, in.Offset, operand.Address)
				}
			}
		}
	}
	return nil
}

// MustValidate panics when the program fails validation.
func (p *Program) MustValidate() {
	if err := p.Validate(); err != nil {
		errorx.Panic(err)
	}
}
