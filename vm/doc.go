// Package vm implements the neojs virtual machine.
//
// This package contains:
//   - the value model (primitives, symbols, objects with ordered properties)
//   - runtime scope frames holding shared binding cells
//   - the bytecode dispatch loop with label and try stacks
//   - calls, classes and constructors
//   - generator and async-generator coroutines built on suspendable VMs
//   - promises, the microtask queue and the awaiter for async functions
//   - a small builtin surface (console, Object, Array, String, errors,
//     Promise, Symbol)
//
// Every call runs on its own VM. A VM that reaches YIELD or AWAIT stops in
// the Suspended state with its stack and scope chain intact; the coroutine
// driver that owns it resumes it later at the saved offset.
package vm
