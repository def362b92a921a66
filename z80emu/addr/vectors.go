package addr

// fixed CPU vectors
const (
	// Reset is where execution starts after power on or reset.
	Reset uint16 = 0x0000
	// IM1 is the handler address for maskable interrupts in mode 1.
	IM1 uint16 = 0x0038
	// NMI is the handler address for the non-maskable interrupt.
	NMI uint16 = 0x0066
)

// Restart returns the call target of RST p, where p is encoded in bits 3-5
// of the opcode.
func Restart(opcode uint8) uint16 {
	return uint16(opcode & 0x38)
}

// Default port assignments of the built-in peripherals.
const (
	// CTC occupies four consecutive ports, one per channel.
	CTCBase uint16 = 0x10
	// Printer data and status ports.
	PrinterData   uint16 = 0x20
	PrinterStatus uint16 = 0x21
	// Console data and status ports.
	ConsoleData   uint16 = 0x30
	ConsoleStatus uint16 = 0x31
	// LogSink collects text output, its status port reports a busy
	// transfer.
	LogSink       uint16 = 0x40
	LogSinkStatus uint16 = 0x41
)

// PrinterStatus bits.
const (
	PrinterBusy   uint8 = 1 << 0
	PrinterStrobe uint8 = 1 << 7
)

// ConsoleStatus bits. Writing ConsoleInterrupt to the status port enables
// the receive interrupt.
const (
	ConsoleReady     uint8 = 1 << 0
	ConsoleInterrupt uint8 = 1 << 7
)

// LogSinkStatus bits.
const (
	LogSinkBusy uint8 = 1 << 0
)
