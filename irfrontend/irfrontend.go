// Package irfrontend adapts github.com/llir/llvm's IR model (ir,
// ir/value, ir/types, ir/constant) to the handful of queries the
// pointer-graph and read-write-graph builders need: which
// instructions are calls, which functions they call (statically or
// through a function pointer), how big a type is in address-taken
// "logical fields", and which functions look like pthread_create/
// pthread_join/lock/unlock for the thread-region and dependence extensions.
//
// This is intentionally thin: it never parses bitcode itself (that's
// llir/llvm's own asm package, invoked by callers before handing this
// analysis an *ir.Module) and never mutates the module except via the
// slicer's block/instruction deletion, which lives in package slicer.
package irfrontend

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Flatten enumerates the scalar "logical fields" of typ in the order
// the pointer analysis's node-per-field encoding expects: a scalar
// type contributes one field, a struct/array contributes one field
// per element (recursively), with padding so empty aggregates still
// occupy at least one field. This mirrors the flattening classical
// field-sensitive pointer analyses do before allocating object nodes.
func Flatten(typ types.Type) []types.Type {
	switch t := typ.(type) {
	case *types.StructType:
		var out []types.Type
		for _, f := range t.Fields {
			out = append(out, Flatten(f)...)
		}
		if len(out) == 0 {
			out = append(out, types.Void)
		}
		return out
	case *types.ArrayType:
		var out []types.Type
		elem := Flatten(t.ElemType)
		for i := uint64(0); i < t.Len; i++ {
			out = append(out, elem...)
		}
		if len(out) == 0 {
			out = append(out, types.Void)
		}
		return out
	default:
		return []types.Type{typ}
	}
}

// SizeOf returns the number of logical fields typ flattens to.
func SizeOf(typ types.Type) uint32 { return uint32(len(Flatten(typ))) }

// IsPointerLike reports whether a value of type typ can hold an
// address: pointers, and aggregates containing a pointer.
func IsPointerLike(typ types.Type) bool {
	for _, f := range Flatten(typ) {
		if _, ok := f.(*types.PointerType); ok {
			return true
		}
	}
	return false
}

// CalleeName returns the statically-known name of a call's callee, or
// "" if the callee is an indirect (function-pointer) call.
func CalleeName(callee value.Value) string {
	switch c := callee.(type) {
	case *ir.Func:
		return strings.TrimPrefix(c.Name(), "@")
	default:
		return ""
	}
}

// IsDeclarationOnly reports whether fn has no body (an external
// function the module only declares).
func IsDeclarationOnly(fn *ir.Func) bool { return len(fn.Blocks) == 0 }

// ConstInt returns the concrete integer value of v if v is an integer
// constant, or (0, false) otherwise. Used to constant-fold memcpy/
// memset/memmove lengths when possible.
func ConstInt(v value.Value) (uint64, bool) {
	if ci, ok := v.(*constant.Int); ok {
		return ci.X.Uint64(), true
	}
	return 0, false
}

// Known libc/pthread entry points the translators special-case.
const (
	FnMalloc  = "malloc"
	FnCalloc  = "calloc"
	FnRealloc = "realloc"
	FnFree    = "free"

	FnMemcpy  = "memcpy"
	FnMemmove = "memmove"
	FnMemset  = "memset"
	FnMemcmp  = "memcmp"
	FnStrlen  = "strlen"
	FnStrchr  = "strchr"
	FnStrrchr = "strrchr"
	FnStrcpy  = "strcpy"
	FnStrncpy = "strncpy"

	FnPthreadCreate = "pthread_create"
	FnPthreadJoin   = "pthread_join"
	FnPthreadMutexLock   = "pthread_mutex_lock"
	FnPthreadMutexUnlock = "pthread_mutex_unlock"

	FnDbgDeclare = "llvm.dbg.declare"
	FnDbgValue   = "llvm.dbg.value"
	FnDbgAddr    = "llvm.dbg.addr"
)

// IsMemcpyLike reports whether name is memcpy or memmove, including
// the llvm.* and __*_chk variants.
func IsMemcpyLike(name string) bool {
	n := stripIntrinsicDecoration(name)
	return n == FnMemcpy || n == FnMemmove || n == "__memcpy_chk" || n == "__memmove_chk"
}

func IsMemset(name string) bool {
	n := stripIntrinsicDecoration(name)
	return n == FnMemset || n == "__memset_chk"
}

func stripIntrinsicDecoration(name string) string {
	name = strings.TrimPrefix(name, "llvm.")
	if i := strings.Index(name, "."); i >= 0 && strings.HasPrefix(name, "memcpy") {
		return name[:i]
	}
	if i := strings.Index(name, "."); i >= 0 && strings.HasPrefix(name, "memmove") {
		return name[:i]
	}
	if i := strings.Index(name, "."); i >= 0 && strings.HasPrefix(name, "memset") {
		return name[:i]
	}
	return name
}

// IsDebugIntrinsic reports whether name is one of the llvm.dbg.*
// intrinsics whose use-edges the dependence graph must preserve.
func IsDebugIntrinsic(name string) bool {
	switch name {
	case FnDbgDeclare, FnDbgValue, FnDbgAddr:
		return true
	}
	return false
}

// FuncByName finds a module-level function by its unprefixed name.
func FuncByName(m *ir.Module, name string) *ir.Func {
	for _, fn := range m.Funcs {
		if strings.TrimPrefix(fn.Name(), "@") == name {
			return fn
		}
	}
	return nil
}
