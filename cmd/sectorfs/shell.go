package main

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/psarda/sectorfs/pkg/config"
	"github.com/psarda/sectorfs/pkg/fs"
)

// shell is the interactive read-eval-print loop over one filesystem session.
type shell struct {
	stack *config.Stack
	sess  *fs.Session

	// cwd is the display form of the working directory. The filesystem
	// resolves paths by sector, not by string; this is prompt sugar only.
	cwd string
}

func newShell(stack *config.Stack) *shell {
	return &shell{
		stack: stack,
		sess:  stack.FS.NewSession(),
		cwd:   "/",
	}
}

var promptColor = color.New(color.FgCyan, color.Bold)

func (s *shell) prompt() string {
	return promptColor.Sprintf("sectorfs:%s$ ", s.cwd)
}

// run drives the REPL until exit or EOF.
func (s *shell) run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	for {
		rl.SetPrompt(s.prompt())

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]
		if cmd == "exit" || cmd == "quit" {
			return nil
		}

		if err := s.execute(cmd, args); err != nil {
			color.Red("%v", err)
		}
	}
}

func (s *shell) execute(cmd string, args []string) error {
	switch cmd {
	case "help":
		s.printHelp()
		return nil
	case "ls":
		return s.ls(args)
	case "cd":
		return s.cd(args)
	case "pwd":
		fmt.Println(s.cwd)
		return nil
	case "mkdir":
		return s.mkdir(args)
	case "create":
		return s.create(args)
	case "write":
		return s.write(args)
	case "cat":
		return s.cat(args)
	case "rm":
		return s.rm(args)
	case "stat":
		return s.stat(args)
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func (s *shell) printHelp() {
	fmt.Print(`Commands:
  ls [path]            list a directory
  cd <path>            change the working directory
  pwd                  print the working directory
  mkdir <path>         create a directory
  create <path> [size] create a file with an optional initial size
  write <path> <text>  overwrite a file with text
  cat <path>           print a file
  rm <path>            remove a file or directory
  stat                 print filesystem statistics
  help                 this text
  exit                 leave the shell
`)
}

func (s *shell) ls(args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	h, err := s.stack.FS.Open(s.sess, target)
	if err != nil {
		return err
	}
	defer h.Close()

	if h.Kind != fs.KindDirectory {
		fmt.Println(path.Base(target))
		return nil
	}

	entries, err := h.Dir.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%6d  %s\n", e.Sector, e.Name)
	}
	return nil
}

func (s *shell) cd(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cd <path>")
	}
	if err := s.stack.FS.ChangeDirectory(s.sess, args[0]); err != nil {
		return err
	}

	// The filesystem tracks the working directory by sector; keep a
	// cleaned textual mirror for the prompt.
	if strings.HasPrefix(args[0], "/") {
		s.cwd = path.Clean(args[0])
	} else {
		s.cwd = path.Clean(s.cwd + "/" + args[0])
	}
	return nil
}

func (s *shell) mkdir(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mkdir <path>")
	}
	return s.stack.FS.Create(s.sess, args[0], 0, true)
}

func (s *shell) create(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: create <path> [size]")
	}
	var size int64
	if len(args) == 2 {
		parsed, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || parsed < 0 {
			return fmt.Errorf("bad size %q", args[1])
		}
		size = parsed
	}
	return s.stack.FS.Create(s.sess, args[0], size, false)
}

func (s *shell) openFile(p string) (*fs.File, error) {
	h, err := s.stack.FS.Open(s.sess, p)
	if err != nil {
		return nil, err
	}
	if h.Kind != fs.KindFile {
		h.Close()
		return nil, fmt.Errorf("%s: is a directory", p)
	}
	return h.File, nil
}

func (s *shell) write(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: write <path> <text>")
	}
	f, err := s.openFile(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write([]byte(strings.Join(args[1:], " ")))
	return err
}

func (s *shell) cat(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat <path>")
	}
	f, err := s.openFile(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", data)
	return nil
}

func (s *shell) rm(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rm <path>")
	}
	return s.stack.FS.Remove(s.sess, args[0])
}

func (s *shell) stat(args []string) error {
	hits, misses := s.stack.Cache.Stats()
	fmt.Printf("device:        %d sectors\n", s.stack.Device.SectorCount())
	fmt.Printf("free:          %d sectors\n", s.stack.FreeMap.FreeSectors())
	fmt.Printf("cache:         %d hits, %d misses\n", hits, misses)
	fmt.Printf("working dir:   sector %d (%s)\n", s.sess.WorkingDirectory(), s.cwd)
	return nil
}
