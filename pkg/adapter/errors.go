package adapter

import "errors"

var (
	ErrAdapterNotFound   = errors.New("adapter not found")
	ErrAdapterLoadFailed = errors.New("adapter load failed")
	ErrAdapterUnloaded   = errors.New("adapter was unloaded during generation")
	ErrAdapterConflict   = errors.New("adapter id already loaded from another path")
)
