package selector

import "errors"

// ErrAlreadyRegistered is returned by Register when fd is already
// registered with this Selector. The select backend does not return
// it: registering an fd again adds the new mask's read/write bits to
// the existing ones.
var ErrAlreadyRegistered = errors.New("selector: fd already registered")

// ErrNotRegistered is returned by Reregister/Deregister when fd is not
// currently registered with this Selector. The select backend returns
// it only when deregistering (Deregister, or Reregister with an empty
// mask), and counts an fd as registered while it is set in its read or
// write set.
var ErrNotRegistered = errors.New("selector: fd not registered")
