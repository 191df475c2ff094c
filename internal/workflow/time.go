package workflow

import "time"

// timeNow is a package-level variable for testability.
// Same pattern as session/time.go.
var timeNow = time.Now
