package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/billyfs"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/config"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/mountablefs"
)

func main() {
	var (
		configFile        = flag.String("config", "", "Path to configuration file")
		pluginPath        = flag.String("plugin", "", "Load a single WASM plugin instead of a configuration file")
		mountPath         = flag.String("mount", "/plugin", "Mount point for --plugin")
		hostRoot          = flag.String("host-root", "", "Directory served to plugins through host_fs (overrides host_fs.root)")
		debug             = flag.Bool("debug", false, "Enable debug output")
		printSampleConfig = flag.Bool("print-sample-config", false, "Print a sample configuration file and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Load WASM filesystem plugins and run one command against them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  ls <path>                 list a directory\n")
		fmt.Fprintf(os.Stderr, "  stat <path>               show file metadata\n")
		fmt.Fprintf(os.Stderr, "  cat <path> [offset [size]] print file content\n")
		fmt.Fprintf(os.Stderr, "  write <path> [data]       write data (or stdin) to a file\n")
		fmt.Fprintf(os.Stderr, "  touch <path>              create an empty file\n")
		fmt.Fprintf(os.Stderr, "  mkdir <path> [mode]       create a directory\n")
		fmt.Fprintf(os.Stderr, "  rm [-r] <path>            remove a file or directory\n")
		fmt.Fprintf(os.Stderr, "  mv <old> <new>            rename\n")
		fmt.Fprintf(os.Stderr, "  chmod <mode> <path>       change permissions (octal)\n")
		fmt.Fprintf(os.Stderr, "  readme <mount>            print a mounted plugin's documentation\n")
		fmt.Fprintf(os.Stderr, "  mounts                    list mount points\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --plugin hellofs.wasm cat /plugin/hello.txt\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config config.yaml ls /\n", os.Args[0])
	}

	flag.Parse()

	if *printSampleConfig {
		fmt.Print(config.SampleConfig)
		return
	}

	if flag.NArg() == 0 || (*configFile == "" && *pluginPath == "") {
		fmt.Fprintf(os.Stderr, "Error: a command and one of --config or --plugin are required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg := &config.Config{}
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
		cfg = loaded
	}
	if *pluginPath != "" {
		cfg.Plugins = append(cfg.Plugins, config.PluginInstance{
			Name:  strings.TrimSuffix(filepath.Base(*pluginPath), filepath.Ext(*pluginPath)),
			Path:  *pluginPath,
			Mount: *mountPath,
		})
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid plugin: %v", err)
		}
	}
	if *hostRoot != "" {
		cfg.HostFS.Root = *hostRoot
	}

	setupLogging(cfg, *debug)

	if err := mountAndRun(cfg, os.Stdout, os.Stdin, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// mountAndRun builds the namespace from cfg and runs one command. Mounted
// plugins are always unmounted before it returns.
func mountAndRun(cfg *config.Config, out io.Writer, in io.Reader, args []string) error {
	hostFS, err := newHostFS(cfg.HostFS)
	if err != nil {
		return fmt.Errorf("failed to open host filesystem: %w", err)
	}

	mfs := mountablefs.NewMountableFS(cfg.Pool)
	defer func() {
		if err := mfs.Close(); err != nil {
			log.Warnf("Failed to unmount plugins: %v", err)
		}
	}()

	for _, p := range cfg.EnabledPlugins() {
		if err := mfs.MountWASM(p.Mount, p.Path, p.Config, hostFS); err != nil {
			return fmt.Errorf("failed to mount %s at %s: %w", p.Name, p.Mount, err)
		}
	}

	return run(mfs, out, in, args)
}

func setupLogging(cfg *config.Config, debug bool) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf(" %s:%d\t", filepath.Base(f.File), f.Line)
		},
	})
	log.SetOutput(os.Stderr)
	level := cfg.Level()
	if debug {
		level = log.DebugLevel
		log.SetReportCaller(true)
	} else if cfg.Server.LogLevel == "" {
		level = log.WarnLevel
	}
	log.SetLevel(level)
}

func newHostFS(cfg config.HostFSConfig) (filesystem.FileSystem, error) {
	if cfg.Root == "" {
		log.Debug("Serving an in-memory host filesystem")
		return billyfs.NewMemory(), nil
	}
	log.Debugf("Serving host filesystem from %s", cfg.Root)
	return billyfs.NewLocal(cfg.Root)
}

// run executes one command against the mounted namespace.
func run(mfs *mountablefs.MountableFS, out io.Writer, in io.Reader, args []string) error {
	cmd, args := args[0], args[1:]
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", cmd, n, len(args))
		}
		return nil
	}

	switch cmd {
	case "ls":
		p := "/"
		if len(args) > 0 {
			p = args[0]
		}
		entries, err := mfs.ReadDir(p)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintln(out, formatInfo(e))
		}
		return nil

	case "stat":
		if err := need(1); err != nil {
			return err
		}
		info, err := mfs.Stat(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatInfo(info))
		if info.Meta != nil {
			fmt.Fprintf(out, "meta: %s/%s %s\n", info.Meta.Name, info.Meta.Type, info.Meta.Content)
		}
		return nil

	case "cat":
		if err := need(1); err != nil {
			return err
		}
		offset, size := int64(0), int64(-1)
		var err error
		if len(args) > 1 {
			if offset, err = strconv.ParseInt(args[1], 10, 64); err != nil {
				return fmt.Errorf("invalid offset: %w", err)
			}
		}
		if len(args) > 2 {
			if size, err = strconv.ParseInt(args[2], 10, 64); err != nil {
				return fmt.Errorf("invalid size: %w", err)
			}
		}
		data, err := mfs.Read(args[0], offset, size)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err

	case "write":
		if err := need(1); err != nil {
			return err
		}
		var data []byte
		if len(args) > 1 {
			data = []byte(strings.Join(args[1:], " "))
		} else {
			var err error
			if data, err = io.ReadAll(in); err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
		}
		resp, err := mfs.Write(args[0], data)
		if err != nil {
			return err
		}
		if len(resp) > 0 {
			fmt.Fprintln(out, string(resp))
		}
		return nil

	case "touch":
		if err := need(1); err != nil {
			return err
		}
		return mfs.Create(args[0])

	case "mkdir":
		if err := need(1); err != nil {
			return err
		}
		perm := uint64(0o755)
		if len(args) > 1 {
			var err error
			if perm, err = strconv.ParseUint(args[1], 8, 32); err != nil {
				return fmt.Errorf("invalid mode: %w", err)
			}
		}
		return mfs.Mkdir(args[0], uint32(perm))

	case "rm":
		if len(args) > 0 && args[0] == "-r" {
			args = args[1:]
			if err := need(1); err != nil {
				return err
			}
			return mfs.RemoveAll(args[0])
		}
		if err := need(1); err != nil {
			return err
		}
		return mfs.Remove(args[0])

	case "mv":
		if err := need(2); err != nil {
			return err
		}
		return mfs.Rename(args[0], args[1])

	case "chmod":
		if err := need(2); err != nil {
			return err
		}
		mode, err := strconv.ParseUint(args[0], 8, 32)
		if err != nil {
			return fmt.Errorf("invalid mode: %w", err)
		}
		return mfs.Chmod(args[1], uint32(mode))

	case "ln":
		if err := need(2); err != nil {
			return err
		}
		return mfs.Symlink(args[0], args[1])

	case "readme":
		if err := need(1); err != nil {
			return err
		}
		mountPath := filesystem.NormalizePath(args[0])
		for _, m := range mfs.GetMounts() {
			if m.Path != mountPath {
				continue
			}
			if r, ok := m.Plugin.(interface{ Readme() string }); ok {
				fmt.Fprintln(out, r.Readme())
				return nil
			}
			return fmt.Errorf("plugin at %s has no documentation", mountPath)
		}
		return fmt.Errorf("no mount at path: %s", mountPath)

	case "mounts":
		for _, m := range mfs.GetMounts() {
			fmt.Fprintf(out, "%s\t%s\n", m.Path, m.Plugin.Name())
		}
		return nil

	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func formatInfo(info filesystem.FileInfo) string {
	kind := "-"
	if info.IsDir {
		kind = "d"
	}
	if info.Meta != nil && info.Meta.Type == mountablefs.MetaValueSymlink {
		kind = "l"
	}
	return fmt.Sprintf("%s%04o %10d %s", kind, info.Mode, info.Size, info.Name)
}
