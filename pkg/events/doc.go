/*
Package events implements in-process publish/subscribe for address-change
notifications.

The query engine publishes an AddressEvent whenever a hostname's freshly
resolved address set differs from what the cache previously held. Consumers
subscribe either as a Listener (an interface with a name and an enabled
flag) or as a named Callback function. Named Filters gate delivery: an
event reaches subscribers only when every registered filter accepts it.

Delivery is synchronous on the notifying goroutine and holds the manager
mutex end to end, so iteration order is stable within one Notify call. A
panicking subscriber is caught and logged; delivery continues with the
remaining subscribers.

PauseEvents holds events in a FIFO queue instead of delivering them;
ResumeEvents drains the queue in order. This lets a consumer apply a batch
of configuration changes without observing intermediate states.

Use NewManager for an isolated instance (preferred, and required in tests);
Default returns the shared process-wide instance.
*/
package events
