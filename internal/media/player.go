package media

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// LogPlayer is the player used when no external player is configured. It
// checks that the asset exists and logs what would play.
type LogPlayer struct {
	assets Assets
	log    *slog.Logger
}

// NewLogPlayer returns a LogPlayer resolving keys against assets.
func NewLogPlayer(assets Assets, log *slog.Logger) *LogPlayer {
	return &LogPlayer{assets: assets, log: log}
}

// Play implements Player.
func (p *LogPlayer) Play(src string) error {
	path, err := p.assets.Stat(src)
	if err != nil {
		return err
	}
	p.log.Info("play", slog.String("source", src), slog.String("path", path))
	return nil
}

// Stop implements Player.
func (p *LogPlayer) Stop() {
	p.log.Debug("stop")
}

// ExecPlayer plays each source in an external process, e.g. mpv or ffplay.
// At most one process runs at a time.
type ExecPlayer struct {
	assets Assets
	argv   []string
	log    *slog.Logger
	// onExit is called from the process wait goroutine when playback ends
	// by itself. err is nil on a clean exit.
	onExit func(src string, err error)

	mu  sync.Mutex
	cmd *exec.Cmd
	gen int
}

// NewExecPlayer parses a command template whose arguments may contain the
// {src} placeholder, e.g. "mpv --no-terminal {src}". If no argument carries
// the placeholder the resolved path is appended.
func NewExecPlayer(template string, assets Assets, log *slog.Logger, onExit func(src string, err error)) (*ExecPlayer, error) {
	argv := strings.Fields(template)
	if len(argv) == 0 {
		return nil, errors.New("exec player: empty command")
	}
	hasPlaceholder := false
	for _, a := range argv[1:] {
		if strings.Contains(a, "{src}") {
			hasPlaceholder = true
		}
	}
	if !hasPlaceholder {
		argv = append(argv, "{src}")
	}
	return &ExecPlayer{assets: assets, argv: argv, log: log, onExit: onExit}, nil
}

// Play implements Player. It replaces any running process.
func (p *ExecPlayer) Play(src string) error {
	path, err := p.assets.Stat(src)
	if err != nil {
		return err
	}

	args := make([]string, 0, len(p.argv)-1)
	for _, a := range p.argv[1:] {
		args = append(args, strings.ReplaceAll(a, "{src}", path))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()

	cmd := exec.Command(p.argv[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", p.argv[0], err)
	}
	p.gen++
	gen := p.gen
	p.cmd = cmd
	p.log.Debug("player process started", slog.String("source", src), slog.Int("pid", cmd.Process.Pid))

	go p.wait(cmd, gen, src)
	return nil
}

// Stop implements Player.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
}

func (p *ExecPlayer) killLocked() {
	if p.cmd == nil {
		return
	}
	// Bumping gen marks the exit as requested, not a failure.
	p.gen++
	if err := p.cmd.Process.Kill(); err != nil {
		p.log.Debug("kill player process", slog.String("error", err.Error()))
	}
	p.cmd = nil
}

func (p *ExecPlayer) wait(cmd *exec.Cmd, gen int, src string) {
	err := cmd.Wait()

	p.mu.Lock()
	requested := p.gen != gen
	if !requested {
		p.cmd = nil
	}
	p.mu.Unlock()

	if requested {
		return
	}
	if err != nil {
		p.log.Warn("player process exited with error", slog.String("source", src), slog.String("error", err.Error()))
	}
	if p.onExit != nil {
		p.onExit(src, err)
	}
}
