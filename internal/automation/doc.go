// Package automation implements trigger/condition/action rules and the
// engine that evaluates them against the event stream.
//
// A rule has exactly one trigger (a state transition, a cron-style time
// pattern, or manual), an ordered list of AND-combined conditions that
// short-circuit on the first false, and an ordered list of actions
// executed sequentially. Each matching rule runs in its own goroutine,
// so a Delay action suspends only that rule's run; failures are logged
// and isolated to the failing run.
package automation
