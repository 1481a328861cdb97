// Package vm implements the runtime core of a segmented object VM for
// Sierra-style game scripts.
//
// This package contains:
//   - Reg addresses: (segment, offset) pairs that double as integers
//   - Generic heap-entry tables and hash index maps
//   - The segment manager and its typed segments
//   - Object records, the class table and selector lookup
//   - The script loader with locker counts and deferred deletion
//   - Send dispatch and the execution stack
//   - The kernel call boundary, garbage collection and the debugger hook
//   - Save and restore
//
// The bytecode decode loop is not part of this package; it drives the core
// through SendSelector, Return, CallKernel, PollAbort and ScriptDebug.
package vm
