package z80emu

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfCheckProgram runs a few arithmetic checks and prints "Passed" or
// "Failed" on the log sink.
var selfCheckProgram = []byte{
	0x31, 0x00, 0xF0,                      // 0000 LD SP,0xF000
	0x3E, 0x15,                            // 0003 LD A,0x15
	0xC6, 0x27,                            // 0005 ADD A,0x27
	0x27,                                  // 0007 DAA
	0xFE, 0x42,                            // 0008 CP 0x42
	0xC2, 0x28, 0x00,                      // 000A JP NZ,fail
	0x21, 0x34, 0x12,                      // 000D LD HL,0x1234
	0x11, 0x11, 0x11,                      // 0010 LD DE,0x1111
	0xB7,                                  // 0013 OR A
	0xED, 0x52,                            // 0014 SBC HL,DE
	0x7C,                                  // 0016 LD A,H
	0xFE, 0x01,                            // 0017 CP 0x01
	0xC2, 0x28, 0x00,                      // 0019 JP NZ,fail
	0x7D,                                  // 001C LD A,L
	0xFE, 0x23,                            // 001D CP 0x23
	0xC2, 0x28, 0x00,                      // 001F JP NZ,fail
	0x21, 0x34, 0x00,                      // 0022 LD HL,passed
	0xC3, 0x2B, 0x00,                      // 0025 JP print
	0x21, 0x3C, 0x00,                      // 0028 fail: LD HL,failed
	0x7E,                                  // 002B print: LD A,(HL)
	0xD3, 0x40,                            // 002C OUT (0x40),A
	0x23,                                  // 002E INC HL
	0xB7,                                  // 002F OR A
	0x20, 0xF9,                            // 0030 JR NZ,print
	0xF3,                                  // 0032 DI
	0x76,                                  // 0033 HALT
	'P', 'a', 's', 's', 'e', 'd', '\n', 0, // 0034
	'F', 'a', 'i', 'l', 'e', 'd', '\n', 0, // 003C
}

type testProgram struct {
	name     string
	program  []byte
	maxSteps int
}

// runTestProgram runs p until the CPU is stuck and returns what it printed
// on the log sink.
func runTestProgram(t *testing.T, p testProgram) string {
	t.Helper()
	var logs bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	m, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Load(p.program))

	_, err = m.RunFor(p.maxSteps)
	require.NoError(t, err)
	require.True(t, m.Stuck(), "%s did not finish in %d steps", p.name, p.maxSteps)
	m.LogSink().Flush()

	var lines []string
	for _, l := range strings.Split(logs.String(), "\n") {
		if _, text, ok := strings.Cut(l, "msg=output line="); ok {
			lines = append(lines, strings.Trim(text, `"`))
		}
	}
	return strings.Join(lines, "\n")
}

func TestSelfCheckProgram(t *testing.T) {
	out := runTestProgram(t, testProgram{name: "self check", program: selfCheckProgram, maxSteps: 200})
	assert.Equal(t, "Passed", out)
}

// Test programs dropped into testdata/programs are expected to print a
// line containing "Passed" on the log sink and then halt.
func TestTestdataPrograms(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "programs", "*.bin"))
	require.NoError(t, err)
	if len(paths) == 0 {
		t.Skip("no test programs found in testdata/programs")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			program, err := os.ReadFile(path)
			require.NoError(t, err)

			out := runTestProgram(t, testProgram{name: path, program: program, maxSteps: 50_000_000})
			assert.Contains(t, out, "Passed")
		})
	}
}
