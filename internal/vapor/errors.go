package vapor

import "errors"

var (
	ErrDataSource         = errors.New("compound data source unreadable or malformed")
	ErrInvalidRecord      = errors.New("invalid compound record")
	ErrNotFound           = errors.New("compound not found")
	ErrInvalidRange       = errors.New("invalid curve sampling range")
	ErrNoPhysicalSolution = errors.New("no physical boiling point at this pressure")
)
