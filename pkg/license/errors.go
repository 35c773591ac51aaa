package license

import "errors"

var errDirectoryNotLoaded = errors.New("license: tenant directory not loaded")
