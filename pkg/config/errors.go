package config

import "fmt"

type ErrConfigFileExists struct {
	Path string
}

func (e ErrConfigFileExists) Error() string {
	return fmt.Sprintf("config file %s already exists", e.Path)
}

type ErrInvalid struct {
	Field  string
	Reason string
}

func (e ErrInvalid) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}
