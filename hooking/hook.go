// Package hooking lets observers attach to the operations of a communicator.
package hooking

import "reflect"

// HookPos names the point in an operation at which a hook fires.
type HookPos struct {
	Name string
}

// HookCtx is what a hook receives when it fires.
type HookCtx struct {
	// Domain is the object raising the hook.
	Domain Hookable

	// Pos is the point of the operation the hook fires from.
	Pos *HookPos

	// Item is the subject of the hook, usually an operation record.
	Item any

	// Detail holds auxiliary data, such as the error of a failed operation.
	Detail any
}

// Hookable is an object that accepts hooks.
type Hookable interface {
	// AcceptHook registers a hook. Hooks must be registered before the
	// domain starts communicating and cannot be removed.
	AcceptHook(hook Hook)

	NumHooks() int
	Hooks() []Hook
	InvokeHook(ctx HookCtx)
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// A HookableBase implements Hookable for embedding.
type HookableBase struct {
	hookList []Hook
}

// NewHookableBase creates a HookableBase.
func NewHookableBase() *HookableBase {
	return &HookableBase{hookList: make([]Hook, 0)}
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers a hook. Registering the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, existing := range h.hookList {
		if sameHook(existing, hook) {
			panic("duplicated hook")
		}
	}

	h.hookList = append(h.hookList, hook)
}

// sameHook compares hooks without panicking on uncomparable ones such as
// HookFunc values.
func sameHook(a, b Hook) bool {
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}

	return a == b
}

// InvokeHook triggers the registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
