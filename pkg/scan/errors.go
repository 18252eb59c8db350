package scan

import "errors"

var errNoActiveBatch = errors.New("no active scan batch")
