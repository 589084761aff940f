package particles

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/plus3/arkecs/ecs"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var ErrBadColorCommand = eris.New("particles: bad color command")

// ColorCommand replaces the colour range of one emitter, or of every emitter
// when Target is empty. It is built off the simulation goroutine and applied
// on it through the scheduler's Inbox.
type ColorCommand struct {
	Target string
	Colors ColorRange
}

// ParseColorCommand reads "[target] r_lo r_hi g_lo g_hi b_lo b_hi".
func ParseColorCommand(line string) (ColorCommand, error) {
	fields := strings.Fields(line)
	var cmd ColorCommand
	switch len(fields) {
	case 6:
	case 7:
		cmd.Target, fields = fields[0], fields[1:]
	default:
		return ColorCommand{}, eris.Wrapf(ErrBadColorCommand, "want 6 channel bounds, got %q", line)
	}

	var v [6]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return ColorCommand{}, eris.Wrapf(ErrBadColorCommand, "%q is not a number", f)
		}
		v[i] = n
	}
	for i := range v {
		if v[i] < 0 || v[i] > 255 {
			return ColorCommand{}, eris.Wrapf(ErrBadColorCommand, "%d out of 0..255", v[i])
		}
	}
	cmd.Colors = ColorRange{
		Lo: ecs.Color{R: uint8(v[0]), G: uint8(v[2]), B: uint8(v[4]), A: 255},
		Hi: ecs.Color{R: uint8(v[1]), G: uint8(v[3]), B: uint8(v[5]), A: 255},
	}
	if err := cmd.Validate(); err != nil {
		return ColorCommand{}, err
	}
	return cmd, nil
}

// Validate rejects ranges whose low bound exceeds the high bound.
func (c ColorCommand) Validate() error {
	lo, hi := c.Colors.Lo, c.Colors.Hi
	if lo.R > hi.R || lo.G > hi.G || lo.B > hi.B {
		return eris.Wrapf(ErrBadColorCommand, "low %v above high %v", lo, hi)
	}
	return nil
}

// Apply runs on the simulation goroutine.
func (c ColorCommand) Apply(frame *ecs.UpdateFrame) {
	storage := frame.Storage
	if c.Target == "" {
		for p := range ecs.Components[Particles](storage) {
			p.Colors = c.Colors
		}
		return
	}
	e, ok := storage.LookupByName(c.Target)
	if !ok {
		return
	}
	if p := ecs.GetComponent[Particles](e); p != nil {
		p.Colors = c.Colors
	}
}

// WatchConsole parses colour commands from r, one per line, and posts them to
// inbox until r is exhausted or ctx is done. Bad lines are logged and skipped.
func WatchConsole(ctx context.Context, r io.Reader, inbox *ecs.Inbox, log *zap.Logger) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return eris.Wrap(err, "read console")
					}
				default:
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := ParseColorCommand(line)
			if err != nil {
				log.Warn("ignoring console line", zap.String("line", line), zap.Error(err))
				continue
			}
			if err := inbox.Post(ctx, cmd.Apply); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			log.Info("queued color command", zap.String("target", cmd.Target))
		}
	}
}

// WatchColorFile queues the colour commands listed in file, one per line.
func WatchColorFile(ctx context.Context, file string, inbox *ecs.Inbox, log *zap.Logger) error {
	f, err := os.Open(file)
	if err != nil {
		return eris.Wrapf(err, "open colour file %s", file)
	}
	defer f.Close()
	return WatchConsole(ctx, f, inbox, log.With(zap.String("file", file)))
}
