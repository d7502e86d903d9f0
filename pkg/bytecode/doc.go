// Package bytecode defines the neojs program format: opcodes, the
// instruction buffer with its constant pool, and the textual and binary
// encodings of a compiled program.
//
// # Encoding
//
// A program's code section is a flat byte buffer of variable-width
// records. Each record is a little-endian u16 opcode followed by the
// operands listed in the opcode table:
//
//   - string: u32 index into the constant pool
//   - address: u64 absolute byte offset into the code section
//   - number: IEEE-754 double
//   - integer: signed 32-bit
//
// Function bodies share the buffer with the code that creates them and are
// entered by address, so a whole source file compiles to one Program.
//
// # Address patching
//
// Forward references are written with Reserve, which emits a placeholder
// and returns its Slot, and resolved later with SetCurrent or SetAddress.
// Each slot is patched exactly once; Validate rejects a program that still
// holds a placeholder.
//
// # Text form
//
// Disassemble renders a program as a metadata section, the constant pool
// and one `address: OPCODE operand, operand` record per instruction.
// Assemble parses that text back into an identical code buffer, which makes
// the listing usable as a debugging and test fixture format.
//
// # Binary form
//
// Marshal and Unmarshal encode programs as canonical CBOR for on-disk
// caching of compiled sources.
package bytecode
