package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/utafrali/posledger/internal/domain"
)

// Printer is a print surface.
type Printer interface {
	Print(ctx context.Context, doc Document) error
}

// Printer types accepted by NewPrinter.
const (
	PrinterNone    = "none"
	PrinterStdout  = "stdout"
	PrinterFile    = "file"
	PrinterNetwork = "network"
)

// NewPrinter builds the print surface for a configured printer type. path is
// the spool file for "file" and host:port for "network".
func NewPrinter(kind, path string, width int) (Printer, error) {
	switch kind {
	case "", PrinterNone:
		return NoPrinter{}, nil
	case PrinterStdout:
		return NewWriterPrinter(os.Stdout, width), nil
	case PrinterFile:
		if path == "" {
			return nil, fmt.Errorf("file printer requires a path")
		}
		return &FilePrinter{path: path, width: width, open: openSpool}, nil
	case PrinterNetwork:
		if path == "" {
			return nil, fmt.Errorf("network printer requires an address")
		}
		return &NetworkPrinter{address: path, width: width, timeout: 5 * time.Second}, nil
	default:
		return nil, fmt.Errorf("unknown printer type %q", kind)
	}
}

// NoPrinter is used when the terminal has no print surface. Every print
// fails with ErrPrintUnavailable.
type NoPrinter struct{}

func (NoPrinter) Print(context.Context, Document) error {
	return &domain.PrintError{Err: errors.New("no printer configured")}
}

// WriterPrinter writes the text layout of each document to w.
type WriterPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

// NewWriterPrinter prints to w at the given width.
func NewWriterPrinter(w io.Writer, width int) *WriterPrinter {
	return &WriterPrinter{w: w, width: width}
}

func (p *WriterPrinter) Print(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return &domain.PrintError{Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := io.WriteString(p.w, doc.Text(p.width)+"\n"); err != nil {
		return &domain.PrintError{Err: err}
	}
	return nil
}

// FilePrinter appends each document to a spool file or printer device,
// opening it per job.
type FilePrinter struct {
	mu    sync.Mutex
	path  string
	width int
	open  func(path string) (io.WriteCloser, error)
}

func openSpool(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644) // #nosec G302 -- spool file read by the print daemon
}

func (p *FilePrinter) Print(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return &domain.PrintError{Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.open(p.path)
	if err != nil {
		return &domain.PrintError{Err: fmt.Errorf("open %s: %w", p.path, err)}
	}
	if _, err := io.WriteString(f, doc.Text(p.width)+"\n"); err != nil {
		_ = f.Close()
		return &domain.PrintError{Err: fmt.Errorf("write %s: %w", p.path, err)}
	}
	// Devices may only report a failed flush on close.
	if err := f.Close(); err != nil {
		return &domain.PrintError{Err: fmt.Errorf("close %s: %w", p.path, err)}
	}
	return nil
}

// NetworkPrinter sends each document to a raw TCP printer port (usually 9100).
type NetworkPrinter struct {
	address string
	width   int
	timeout time.Duration
}

func (p *NetworkPrinter) Print(ctx context.Context, doc Document) error {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return &domain.PrintError{Err: fmt.Errorf("connect to %s: %w", p.address, err)}
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(2 * p.timeout))
	if _, err := io.WriteString(conn, doc.Text(p.width)+"\n"); err != nil {
		return &domain.PrintError{Err: fmt.Errorf("write to %s: %w", p.address, err)}
	}
	return nil
}
