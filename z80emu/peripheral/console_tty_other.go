//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package peripheral

import (
	"context"
	"errors"
	"os"
)

// ErrNoTTY is returned where cbreak terminal input is not supported.
var ErrNoTTY = errors.New("peripheral: terminal input not supported on this platform")

type TTY struct{}

func OpenTTY(*os.File) (*TTY, error) { return nil, ErrNoTTY }

func (t *TTY) Forward(context.Context, *Console) error { return ErrNoTTY }

func (t *TTY) Restore() error { return nil }
