package goasio

import (
	"context"
	"net"
)

// AsyncResolve looks up host and delivers its addresses through h, running
// net.DefaultResolver.LookupIPAddr on a goroutine of its own and posting the
// result onto ctx's task queue rather than blocking a caller or a worker. Spec.md §5.9 (original_source's ip/resolver.rs,
// ops/resolve_ops.rs); the core spec's Non-goals exclude resolution
// *policy* (caching, round-robin, search domains), not invoking a lookup at
// all — §1 explicitly allows "invoking a host lookup facility".
func AsyncResolve(ctx *IoContext, host string, h Handler[[]net.IPAddr]) Callee[[]net.IPAddr] {
	caller, callee := h.channel()
	if ctx.Stopped() {
		caller.failure(ErrOperationCanceled)
		return callee
	}
	ctx.workAdd()
	wrapped := workDoneCaller[[]net.IPAddr]{ctx: ctx, inner: caller}
	go func() {
		addrs, err := net.DefaultResolver.LookupIPAddr(context.Background(), host)
		ctx.Post(func() {
			if err != nil {
				wrapped.failure(err)
				return
			}
			wrapped.success(addrs)
		})
	}()
	return callee
}
