package pointer

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/sirupsen/logrus"

	"github.com/mchalupa/dgo/dglog"
	"github.com/mchalupa/dgo/irfrontend"
)

// callCompatible decides whether callee is a plausible target for a
// function-pointer call site: same arity (or compatible variadic
// prefix) and each parameter agrees with its argument on whether it
// is pointer-like. This is deliberately permissive — it exists only
// to filter out the blatantly wrong candidates real-world indirect
// calls through UNKNOWN_MEMORY would otherwise pull in, not to
// reimplement C's type system.
func callCompatible(callSite *ir.InstCall, callee *ir.Func) bool {
	params := callee.Sig.Params
	args := callSite.Args
	if callee.Sig.Variadic {
		if len(args) < len(params) {
			return false
		}
	} else if len(args) != len(params) {
		return false
	}
	for i, p := range params {
		if i >= len(args) {
			break
		}
		if irfrontend.IsPointerLike(p) != irfrontend.IsPointerLike(args[i].Type()) {
			return false
		}
	}
	return true
}

// warnIncompatibleCall logs, once per call site, that a dynamic call
// found no compatible target in its points-to set and was resolved to
// UNKNOWN_MEMORY instead.
func warnIncompatibleCall(site NodeID) {
	key := fmt.Sprintf("callcompat-%d", site)
	dglog.Once("pointer", key, "dynamic call has no type-compatible target; treating as UNKNOWN_MEMORY", logrus.Fields{"site": site})
}
