// Command ringseldemo exercises a shared-memory ring together with a
// readiness selector: a producer goroutine fills the ring and, once
// done, writes one byte to a pipe, while the calling goroutine drains
// the ring and, whenever it is empty, polls a selector watching the
// pipe's read end for readability.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/samplelabs/ringsel/ring"
	"github.com/samplelabs/ringsel/selector"
)

type colorMode int

const (
	colorAuto colorMode = iota
	colorAlways
	colorNever
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		capacity   uint
		bytes      uint
		chunk      uint
		colorFlag  string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "ringseldemo",
		Short: "Transfer bytes through a shared-memory ring while watching a pipe with a selector",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseColorMode(colorFlag)
			if err != nil {
				return err
			}
			return run(runOptions{
				capacity: capacity,
				total:    uint64(bytes),
				chunk:    int(chunk),
				color:    mode,
				verbose:  verbose,
			})
		},
	}

	cmd.Flags().UintVar(&capacity, "capacity", 1<<16, "ring capacity in bytes (rounded up to a power of two)")
	cmd.Flags().UintVar(&bytes, "bytes", 1<<20, "total bytes to transfer")
	cmd.Flags().UintVar(&chunk, "chunk", 503, "producer write chunk size in bytes")
	cmd.Flags().StringVar(&colorFlag, "color", "auto", "color output: auto, always, never")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each selector wakeup")

	return cmd
}

func parseColorMode(s string) (colorMode, error) {
	switch s {
	case "auto":
		return colorAuto, nil
	case "always":
		return colorAlways, nil
	case "never":
		return colorNever, nil
	default:
		return colorAuto, fmt.Errorf("invalid --color value %q: want auto, always, or never", s)
	}
}

type runOptions struct {
	capacity uint
	total    uint64
	chunk    int
	color    colorMode
	verbose  bool
}

func run(opts runOptions) error {
	logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:            levelFor(opts.verbose),
	})

	styles := stylesFor(opts.color)

	p, c, err := ring.New(opts.capacity)
	if err != nil {
		return fmt.Errorf("ringseldemo: create ring: %w", err)
	}
	defer p.Close()
	defer c.Close()

	sel, err := selector.New()
	if err != nil {
		return fmt.Errorf("ringseldemo: create selector: %w", err)
	}
	defer sel.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("ringseldemo: create pipe: %w", err)
	}
	defer pr.Close()
	defer pw.Close()

	if err := sel.Register(int(pr.Fd()), selector.Readable); err != nil {
		return fmt.Errorf("ringseldemo: register pipe: %w", err)
	}

	logger.Info("ring ready", "capacity", p.Capacity())

	done := make(chan error, 1)
	go func() {
		done <- produce(p, pw, opts.total, opts.chunk)
	}()

	consumed, err := consume(c, sel, opts.total, logger, opts.verbose)
	if err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}

	summary := lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("ringseldemo summary"),
		styles.Label.Render("capacity:")+" "+fmt.Sprint(p.Capacity()),
		styles.Label.Render("transferred:")+" "+fmt.Sprint(consumed),
	)
	fmt.Println(summary)
	return nil
}

// produce writes total bytes to p in chunk-sized pieces, signalling pw
// once after the last write so the consumer's selector loop can notice
// the producer finished without polling the ring directly.
func produce(p *ring.Producer, pw *os.File, total uint64, chunk int) error {
	if chunk <= 0 {
		chunk = 1
	}
	buf := make([]byte, chunk)
	rng := rand.New(rand.NewSource(1))

	var written uint64
	for written < total {
		n := chunk
		if remaining := total - written; remaining < uint64(chunk) {
			n = int(remaining)
		}
		rng.Read(buf[:n])
		if _, ok := p.Write(buf[:n]); !ok {
			return fmt.Errorf("ringseldemo: producer write failed: ring disconnected")
		}
		written += uint64(n)
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("ringseldemo: close producer: %w", err)
	}
	if _, err := pw.Write([]byte{0}); err != nil {
		return fmt.Errorf("ringseldemo: signal pipe: %w", err)
	}
	return nil
}

// consume drains c until total bytes are read, using sel to wait
// between draws instead of spinning on TryRead.
func consume(c *ring.Consumer, sel *selector.Selector, total uint64, logger *charmlog.Logger, verbose bool) (uint64, error) {
	buf := make([]byte, 4096)
	var read uint64

	for read < total {
		n := c.TryRead(buf)
		if n > 0 {
			read += uint64(n)
			continue
		}

		fired, err := sel.PollTimeout(50 * time.Millisecond)
		if err != nil {
			return read, fmt.Errorf("ringseldemo: poll: %w", err)
		}
		if verbose {
			logger.Debug("selector wakeup", "events", len(fired))
		}
	}
	return read, nil
}

func levelFor(verbose bool) charmlog.Level {
	if verbose {
		return charmlog.DebugLevel
	}
	return charmlog.InfoLevel
}

type uiStyles struct {
	Title lipgloss.Style
	Label lipgloss.Style
}

func stylesFor(mode colorMode) uiStyles {
	if !colorEnabled(mode) {
		return uiStyles{Title: lipgloss.NewStyle(), Label: lipgloss.NewStyle()}
	}
	return uiStyles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		Label: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	}
}

func colorEnabled(mode colorMode) bool {
	switch mode {
	case colorAlways:
		return true
	case colorNever:
		return false
	default:
		return isatty.IsTerminal(os.Stdout.Fd()) || isTerminalIoctl(os.Stdout.Fd())
	}
}

// isTerminalIoctl is a fallback terminal check for descriptors
// isatty's ConEmu/ANSI detection doesn't cover, e.g. a raw ioctl
// against stdout when it has been reopened over a pty helper.
func isTerminalIoctl(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}
