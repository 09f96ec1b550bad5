package driver

import "io"

// Port defines the byte stream to a single instrument
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// ListFunc enumerates candidate port names in try order
type ListFunc func() ([]string, error)

// OpenFunc opens a named port ready for line I/O
type OpenFunc func(name string) (Port, error)
