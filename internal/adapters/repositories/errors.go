package repositories

import "errors"

var errInvalidLoad = errors.New("load store: load must have an id")
