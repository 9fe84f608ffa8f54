// Package scheduler implements the periodic control loop that drives the
// physical panels.
//
// On a fixed tick (default 250 ms) the scheduler visits every display and,
// in order: pushes pending config changes to the hardware, resets the
// scheduling state if new content was assigned, rotates sequence content
// whose active member has expired, re-registers dynamic submessages after a
// content change, and decides whether a re-render is due. Only when content
// changed, a sequence rotated, or a dynamic submessage is due does it ask
// the renderer for a fresh frame and commit it to the panel; otherwise the
// hardware is left alone.
//
// # Timing
//
// Dynamic submessages refresh on their own rolling interval in seconds,
// except for the "minute" interval: those compare the wall-clock minute of
// this tick with the minute observed on the previous tick, so every
// minute-based submessage across all displays refreshes in lockstep on the
// same boundary crossing. A clock submessage registered at second 59 will
// therefore refresh after only one second; that alignment is intentional.
//
// # Failure Isolation
//
// Hardware setter, render and commit failures are logged and confined to
// the offending display, key or submessage. A tick always completes for all
// displays.
package scheduler
