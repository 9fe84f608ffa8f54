// Package display provides the display registry for the flipdot server.
//
// The registry is the process-lifetime catalogue of every panel on the
// shared serial bus. Each entry pairs the immutable hardware description
// (dimensions, bus address, controller and renderer handles) with the
// mutable per-display state: config, current message, cached rendered
// bitmap and the scheduling bookkeeping.
//
// # Key Types
//
//   - Display: One physical panel plus its mutable state
//   - Registry: Immutable id → Display mapping built once at startup
//   - Config: The closed set of boolean panel options
//   - State / Schedule: The mutable state guarded by the display lock
//   - Controller / Renderer: The hardware collaborator contracts
//
// # Thread Safety
//
// The registry itself is immutable after startup and safe for concurrent
// reads. Each display's mutable state is guarded by its own mutex; both the
// network dispatcher and the scheduler reach it exclusively through
// Display.Update, which holds the lock for the duration of the callback.
// Hardware calls are deliberately kept outside that lock.
package display
