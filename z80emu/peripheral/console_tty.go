//go:build linux || darwin || freebsd || netbsd || openbsd

package peripheral

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// TTY puts a terminal in cbreak mode and forwards every key to a console.
type TTY struct {
	input   *os.File
	canAttr unix.Termios
}

// OpenTTY switches f to cbreak mode. Restore must be called to put the
// terminal back in canonical mode.
func OpenTTY(f *os.File) (*TTY, error) {
	t := &TTY{input: f}
	if err := termios.Tcgetattr(f.Fd(), &t.canAttr); err != nil {
		return nil, fmt.Errorf("reading terminal attributes: %w", err)
	}

	cbreak := t.canAttr
	termios.Cfmakecbreak(&cbreak)
	if err := termios.Tcsetattr(f.Fd(), termios.TCSANOW, &cbreak); err != nil {
		return nil, fmt.Errorf("setting cbreak mode: %w", err)
	}
	return t, nil
}

// Forward reads keys until ctx is done or the input fails, sending them to
// the console. It blocks, run it on its own goroutine.
func (t *TTY) Forward(ctx context.Context, c *Console) error {
	buf := make([]byte, 1)
	for ctx.Err() == nil {
		n, err := t.input.Read(buf)
		if err != nil {
			return err
		}
		if n == 1 && !c.Send(buf[0]) {
			c.logger.Warn("console input buffer full, key dropped", "key", buf[0])
		}
	}
	return ctx.Err()
}

// Restore puts the terminal back in canonical mode.
func (t *TTY) Restore() error {
	_ = termios.Tcflush(t.input.Fd(), termios.TCIFLUSH)
	return termios.Tcsetattr(t.input.Fd(), termios.TCSANOW, &t.canAttr)
}
