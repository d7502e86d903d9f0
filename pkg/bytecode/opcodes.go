package bytecode

import "fmt"

// Opcode represents a bytecode instruction. Opcodes are encoded as a
// little-endian u16 and organized into ranges by category.
type Opcode uint16

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop       Opcode = 0x00 // No operation
	OpPop       Opcode = 0x01 // Pop top of stack
	OpPushValue Opcode = 0x02 // Push a copy of the value at depth N: PUSH_VALUE <depth:i32>
	OpInsert    Opcode = 0x03 // Move top of stack below the next N values: INSERT <n:i32>

	// ========================================================================
	// Literals (0x10-0x1F)
	// ========================================================================

	OpPushUndefined     Opcode = 0x10 // Push undefined
	OpPushNull          Opcode = 0x11 // Push null
	OpPushTrue          Opcode = 0x12 // Push true
	OpPushFalse         Opcode = 0x13 // Push false
	OpPushNaN           Opcode = 0x14 // Push NaN
	OpPushInfinity      Opcode = 0x15 // Push Infinity
	OpPushUninitialized Opcode = 0x16 // Push the uninitialized binding marker
	OpPushNumber        Opcode = 0x17 // Push a double: PUSH_NUMBER <f64>
	OpPushString        Opcode = 0x18 // Push a constant: PUSH_STRING <index:u32>
	OpPushThis          Opcode = 0x19 // Push the receiver of the running function
	OpPushCallee        Opcode = 0x1A // Push the running function itself
	OpPushSuper         Opcode = 0x1B // Push the prototype above the method's home object

	// ========================================================================
	// Composite values (0x20-0x2F)
	// ========================================================================

	OpPushArray    Opcode = 0x20 // Push a new empty array
	OpAppend       Opcode = 0x21 // Pop value, append to array below it
	OpSpread       Opcode = 0x22 // Pop iterable, append every element to array below it
	OpPushObject   Opcode = 0x23 // Push a new empty object
	OpDefField     Opcode = 0x24 // Pop key and value, define on object below them
	OpObjectSpread Opcode = 0x25 // Pop source, copy its own properties onto object below it
	OpRest         Opcode = 0x26 // Replace array with its tail from index N: REST <start:i32>
	OpConcat       Opcode = 0x27 // Pop N values and push their string concatenation: CONCAT <n:i32>

	// ========================================================================
	// Functions and classes (0x30-0x3F)
	// ========================================================================

	OpPushFunction       Opcode = 0x30 // Push a new function
	OpPushGenerator      Opcode = 0x31 // Push a new generator function
	OpPushAsyncFunction  Opcode = 0x32 // Push a new async function
	OpPushAsyncGenerator Opcode = 0x33 // Push a new async generator function
	OpPushLambda         Opcode = 0x34 // Push a new arrow function
	OpPushAsyncLambda    Opcode = 0x35 // Push a new async arrow function
	OpSetName            Opcode = 0x36 // Pop name, set it on the function below
	OpSetSource          Opcode = 0x37 // Set the function's source text: SET_SOURCE <index:u32>
	OpSetAddress         Opcode = 0x38 // Set the function's entry point: SET_ADDRESS <addr:u64>
	OpSetClosure         Opcode = 0x39 // Capture a binding cell into the function: SET_CLOSURE <index:u32>
	OpSetBind            Opcode = 0x3A // Pop receiver, bind it as the arrow function's this
	OpClass              Opcode = 0x3B // Pop constructor and parent, link prototypes, push constructor
	OpDefMethod          Opcode = 0x3C // Pop key and method, install on class: DEF_METHOD <static:i32>
	OpSetFieldInit       Opcode = 0x3D // Pop initializer, attach it to the class below

	// ========================================================================
	// Scopes and bindings (0x40-0x4F)
	// ========================================================================

	OpPushScope  Opcode = 0x40 // Enter a new scope frame
	OpPopScope   Opcode = 0x41 // Leave the current scope frame, disposing using bindings
	OpRenewScope Opcode = 0x42 // Replace every binding cell of the current frame with a copy
	OpLoad       Opcode = 0x43 // Push binding value: LOAD <name:u32>
	OpStore      Opcode = 0x44 // Assign top of stack to binding: STORE <name:u32>
	OpDef        Opcode = 0x45 // Pop value, initialize binding in current frame: DEF <name:u32>
	OpSetConst   Opcode = 0x46 // Mark the uninitialized marker on top as const
	OpSetUsing   Opcode = 0x47 // Mark the uninitialized marker on top as a using binding
	OpTypeofName Opcode = 0x48 // Push typeof of a binding, "undefined" if unbound: TYPEOF_NAME <name:u32>

	// ========================================================================
	// Binary operators (0x50-0x67)
	// ========================================================================

	OpAdd        Opcode = 0x50 // a + b
	OpSub        Opcode = 0x51 // a - b
	OpMul        Opcode = 0x52 // a * b
	OpDiv        Opcode = 0x53 // a / b
	OpMod        Opcode = 0x54 // a % b
	OpPow        Opcode = 0x55 // a ** b
	OpShl        Opcode = 0x56 // a << b
	OpShr        Opcode = 0x57 // a >> b
	OpUshr       Opcode = 0x58 // a >>> b
	OpAnd        Opcode = 0x59 // a & b
	OpOr         Opcode = 0x5A // a | b
	OpXor        Opcode = 0x5B // a ^ b
	OpEq         Opcode = 0x5C // a == b
	OpNe         Opcode = 0x5D // a != b
	OpSeq        Opcode = 0x5E // a === b
	OpSne        Opcode = 0x5F // a !== b
	OpLt         Opcode = 0x60 // a < b
	OpLe         Opcode = 0x61 // a <= b
	OpGt         Opcode = 0x62 // a > b
	OpGe         Opcode = 0x63 // a >= b
	OpIn         Opcode = 0x64 // a in b
	OpInstanceOf Opcode = 0x65 // a instanceof b

	// ========================================================================
	// Unary operators (0x68-0x6F)
	// ========================================================================

	OpNot        Opcode = 0x68 // ~a
	OpLogicalNot Opcode = 0x69 // !a
	OpNeg        Opcode = 0x6A // -a
	OpPlus       Opcode = 0x6B // +a
	OpInc        Opcode = 0x6C // a + 1 on the numeric value
	OpDec        Opcode = 0x6D // a - 1 on the numeric value
	OpTypeof     Opcode = 0x6E // typeof a
	OpVoid       Opcode = 0x6F // replace a with undefined

	// ========================================================================
	// Control flow (0x70-0x7F). Conditional jumps inspect without popping.
	// ========================================================================

	OpJmp           Opcode = 0x70 // JMP <addr:u64>
	OpJTrue         Opcode = 0x71 // Jump if top is truthy
	OpJFalse        Opcode = 0x72 // Jump if top is falsy
	OpJNull         Opcode = 0x73 // Replace nullish top with undefined and jump
	OpJNotNull      Opcode = 0x74 // Jump if top is neither null nor undefined
	OpJNotUndefined Opcode = 0x75 // Jump if top is not undefined

	// ========================================================================
	// Calls and fields (0x80-0x8F). Call sites carry line and column.
	// ========================================================================

	OpCall            Opcode = 0x80 // Pop args array and callee, push result
	OpNew             Opcode = 0x81 // Pop args array and constructor, push instance
	OpMemberCall      Opcode = 0x82 // Pop args array, key and host, call host[key] with host as this
	OpSuperCall       Opcode = 0x83 // Pop args array, run the parent constructor on this
	OpSuperMemberCall Opcode = 0x84 // Pop args array and key, call the parent's method on this
	OpGetField        Opcode = 0x85 // Pop key and host, push host[key]
	OpSetField        Opcode = 0x86 // Pop value, key and host, assign, push value
	OpDelField        Opcode = 0x87 // Pop key and host, delete, push result

	// ========================================================================
	// Labels (0x90-0x9F)
	// ========================================================================

	OpPushBreakLabel    Opcode = 0x90 // PUSH_BREAK_LABEL <addr:u64> <name:u32>
	OpPushContinueLabel Opcode = 0x91 // PUSH_CONTINUE_LABEL <addr:u64> <name:u32>
	OpPopLabel          Opcode = 0x92 // Pop the top label frame
	OpBreak             Opcode = 0x93 // BREAK <name:u32>
	OpContinue          Opcode = 0x94 // CONTINUE <name:u32>

	// ========================================================================
	// Protected regions (0xA0-0xAF)
	// ========================================================================

	OpTryBegin Opcode = 0xA0 // TRY_BEGIN <catch:u64> <finally:u64>, zero means absent
	OpTryEnd   Opcode = 0xA1 // Leave the current phase of the innermost try frame
	OpThrow    Opcode = 0xA2 // Pop value and throw it

	// ========================================================================
	// Iteration (0xB0-0xBF)
	// ========================================================================

	OpIterator      Opcode = 0xB0 // Replace iterable with its iterator
	OpAsyncIterator Opcode = 0xB1 // Replace iterable with its async iterator
	OpNext          Opcode = 0xB2 // Step iterator below: push value and done
	OpSend          Opcode = 0xB3 // Pop value, call next(value) on iterator below, push result object
	OpKeys          Opcode = 0xB4 // Replace object with an array of its enumerable keys

	// ========================================================================
	// Coroutines (0xC0-0xCF)
	// ========================================================================

	OpYield Opcode = 0xC0 // Pop value and suspend with a yield interrupt
	OpAwait Opcode = 0xC1 // Pop value and suspend with an await interrupt

	// ========================================================================
	// Completion (0xD0-0xDF)
	// ========================================================================

	OpSave     Opcode = 0xD0 // Pop value and record it as the completion value
	OpRet      Opcode = 0xD1 // Pop value and return it
	OpHlt      Opcode = 0xD2 // Stop, producing the recorded completion value
	OpDebugger Opcode = 0xD3 // Debugger statement
)

// OperandKind identifies the encoding of one instruction operand.
type OperandKind uint8

const (
	// OperandString is a u32 index into the constant pool.
	OperandString OperandKind = iota
	// OperandAddress is a u64 absolute byte offset into the code buffer.
	OperandAddress
	// OperandNumber is an IEEE-754 double.
	OperandNumber
	// OperandInteger is a signed 32-bit integer.
	OperandInteger
)

// Size returns the encoded width of the operand in bytes.
func (k OperandKind) Size() int {
	switch k {
	case OperandString, OperandInteger:
		return 4
	case OperandAddress, OperandNumber:
		return 8
	default:
		return 0
	}
}

// String returns a human-readable name for the operand kind.
func (k OperandKind) String() string {
	switch k {
	case OperandString:
		return "string"
	case OperandAddress:
		return "address"
	case OperandNumber:
		return "number"
	case OperandInteger:
		return "integer"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// OpcodeInfo contains metadata about an opcode.
type OpcodeInfo struct {
	Name     string
	Operands []OperandKind
}

var (
	noOperands = []OperandKind{}
	oneString  = []OperandKind{OperandString}
	oneAddress = []OperandKind{OperandAddress}
	oneInteger = []OperandKind{OperandInteger}
	position   = []OperandKind{OperandInteger, OperandInteger}
	labelFrame = []OperandKind{OperandAddress, OperandString}
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack
	OpNop:       {"NOP", noOperands},
	OpPop:       {"POP", noOperands},
	OpPushValue: {"PUSH_VALUE", oneInteger},
	OpInsert:    {"INSERT", oneInteger},

	// Literals
	OpPushUndefined:     {"PUSH_UNDEFINED", noOperands},
	OpPushNull:          {"PUSH_NULL", noOperands},
	OpPushTrue:          {"PUSH_TRUE", noOperands},
	OpPushFalse:         {"PUSH_FALSE", noOperands},
	OpPushNaN:           {"PUSH_NAN", noOperands},
	OpPushInfinity:      {"PUSH_INFINITY", noOperands},
	OpPushUninitialized: {"PUSH_UNINITIALIZED", noOperands},
	OpPushNumber:        {"PUSH_NUMBER", []OperandKind{OperandNumber}},
	OpPushString:        {"PUSH_STRING", oneString},
	OpPushThis:          {"PUSH_THIS", noOperands},
	OpPushCallee:        {"PUSH_CALLEE", noOperands},
	OpPushSuper:         {"PUSH_SUPER", noOperands},

	// Composite values
	OpPushArray:    {"PUSH_ARRAY", noOperands},
	OpAppend:       {"APPEND", noOperands},
	OpSpread:       {"SPREAD", noOperands},
	OpPushObject:   {"PUSH_OBJECT", noOperands},
	OpDefField:     {"DEF_FIELD", noOperands},
	OpObjectSpread: {"OBJECT_SPREAD", noOperands},
	OpRest:         {"REST", oneInteger},
	OpConcat:       {"CONCAT", oneInteger},

	// Functions and classes
	OpPushFunction:       {"PUSH_FUNCTION", noOperands},
	OpPushGenerator:      {"PUSH_GENERATOR", noOperands},
	OpPushAsyncFunction:  {"PUSH_ASYNC_FUNCTION", noOperands},
	OpPushAsyncGenerator: {"PUSH_ASYNC_GENERATOR", noOperands},
	OpPushLambda:         {"PUSH_LAMBDA", noOperands},
	OpPushAsyncLambda:    {"PUSH_ASYNC_LAMBDA", noOperands},
	OpSetName:            {"SET_NAME", noOperands},
	OpSetSource:          {"SET_SOURCE", oneString},
	OpSetAddress:         {"SET_ADDRESS", oneAddress},
	OpSetClosure:         {"SET_CLOSURE", oneString},
	OpSetBind:            {"SET_BIND", noOperands},
	OpClass:              {"CLASS", noOperands},
	OpDefMethod:          {"DEF_METHOD", oneInteger},
	OpSetFieldInit:       {"SET_FIELD_INIT", noOperands},

	// Scopes
	OpPushScope:  {"PUSH_SCOPE", noOperands},
	OpPopScope:   {"POP_SCOPE", noOperands},
	OpRenewScope: {"RENEW_SCOPE", noOperands},
	OpLoad:       {"LOAD", oneString},
	OpStore:      {"STORE", oneString},
	OpDef:        {"DEF", oneString},
	OpSetConst:   {"SET_CONST", noOperands},
	OpSetUsing:   {"SET_USING", noOperands},
	OpTypeofName: {"TYPEOF_NAME", oneString},

	// Binary operators
	OpAdd:        {"ADD", noOperands},
	OpSub:        {"SUB", noOperands},
	OpMul:        {"MUL", noOperands},
	OpDiv:        {"DIV", noOperands},
	OpMod:        {"MOD", noOperands},
	OpPow:        {"POW", noOperands},
	OpShl:        {"SHL", noOperands},
	OpShr:        {"SHR", noOperands},
	OpUshr:       {"USHR", noOperands},
	OpAnd:        {"AND", noOperands},
	OpOr:         {"OR", noOperands},
	OpXor:        {"XOR", noOperands},
	OpEq:         {"EQ", noOperands},
	OpNe:         {"NE", noOperands},
	OpSeq:        {"SEQ", noOperands},
	OpSne:        {"SNE", noOperands},
	OpLt:         {"LT", noOperands},
	OpLe:         {"LE", noOperands},
	OpGt:         {"GT", noOperands},
	OpGe:         {"GE", noOperands},
	OpIn:         {"IN", noOperands},
	OpInstanceOf: {"INSTANCE_OF", noOperands},

	// Unary operators
	OpNot:        {"NOT", noOperands},
	OpLogicalNot: {"LOGICAL_NOT", noOperands},
	OpNeg:        {"NEG", noOperands},
	OpPlus:       {"PLUS", noOperands},
	OpInc:        {"INC", noOperands},
	OpDec:        {"DEC", noOperands},
	OpTypeof:     {"TYPEOF", noOperands},
	OpVoid:       {"VOID", noOperands},

	// Control flow
	OpJmp:           {"JMP", oneAddress},
	OpJTrue:         {"JTRUE", oneAddress},
	OpJFalse:        {"JFALSE", oneAddress},
	OpJNull:         {"JNULL", oneAddress},
	OpJNotNull:      {"JNOT_NULL", oneAddress},
	OpJNotUndefined: {"JNOT_UNDEFINED", oneAddress},

	// Calls and fields
	OpCall:            {"CALL", position},
	OpNew:             {"NEW", position},
	OpMemberCall:      {"MEMBER_CALL", position},
	OpSuperCall:       {"SUPER_CALL", position},
	OpSuperMemberCall: {"SUPER_MEMBER_CALL", position},
	OpGetField:        {"GET_FIELD", noOperands},
	OpSetField:        {"SET_FIELD", noOperands},
	OpDelField:        {"DEL_FIELD", noOperands},

	// Labels
	OpPushBreakLabel:    {"PUSH_BREAK_LABEL", labelFrame},
	OpPushContinueLabel: {"PUSH_CONTINUE_LABEL", labelFrame},
	OpPopLabel:          {"POP_LABEL", noOperands},
	OpBreak:             {"BREAK", oneString},
	OpContinue:          {"CONTINUE", oneString},

	// Protected regions
	OpTryBegin: {"TRY_BEGIN", []OperandKind{OperandAddress, OperandAddress}},
	OpTryEnd:   {"TRY_END", noOperands},
	OpThrow:    {"THROW", noOperands},

	// Iteration
	OpIterator:      {"ITERATOR", noOperands},
	OpAsyncIterator: {"ASYNC_ITERATOR", noOperands},
	OpNext:          {"NEXT", noOperands},
	OpSend:          {"SEND", noOperands},
	OpKeys:          {"KEYS", noOperands},

	// Coroutines
	OpYield: {"YIELD", noOperands},
	OpAwait: {"AWAIT", noOperands},

	// Completion
	OpSave:     {"SAVE", noOperands},
	OpRet:      {"RET", noOperands},
	OpHlt:      {"HLT", noOperands},
	OpDebugger: {"DEBUGGER", noOperands},
}

// opcodeByName is the reverse of opcodeInfoTable, used by the assembler.
var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// The second result is false if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

// LookupOpcode returns the opcode with the given mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%04X)", uint16(op))
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	n := 0
	for _, k := range opcodeInfoTable[op].Operands {
		n += k.Size()
	}
	return n
}

// InstructionLen returns the total length of an instruction (2 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 2 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJmp && op <= OpJNotUndefined
}

// IsCall returns true if this opcode invokes a function.
func (op Opcode) IsCall() bool {
	return op >= OpCall && op <= OpSuperMemberCall
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
