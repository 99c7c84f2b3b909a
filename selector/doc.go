// Package selector is a uniform, level-triggered readiness selector
// over the host kernel's event-notification mechanism: epoll on
// Linux, kqueue on the BSDs and Darwin, and a portable select(2)
// fallback everywhere else (or when explicitly requested with the
// ringsel_select build tag).
//
// A Selector registers file descriptors with a requested EventMask
// and yields Fired (fd, mask) pairs when polled. Descriptors are
// external resources: registering one does not take ownership of it,
// and the caller must keep it valid for as long as it stays
// registered.
package selector
