package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/PlakarLabs/tilediff/hashing"
	"github.com/PlakarLabs/tilediff/logging"
	"github.com/PlakarLabs/tilediff/profiler"
	"github.com/PlakarLabs/tilediff/snapshot/importer"

	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/apply"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/chain"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/compare"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/config"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/diff"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/filter"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/help"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/info"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/retrieve"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/verify"
	_ "github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands/version"

	_ "github.com/PlakarLabs/tilediff/snapshot/exporter/fs"
	_ "github.com/PlakarLabs/tilediff/snapshot/exporter/s3"
	_ "github.com/PlakarLabs/tilediff/snapshot/exporter/tar"

	_ "github.com/PlakarLabs/tilediff/snapshot/importer/fs"
	_ "github.com/PlakarLabs/tilediff/snapshot/importer/s3"
	_ "github.com/PlakarLabs/tilediff/snapshot/importer/tar"
)

type excludeFlags []string

func (e *excludeFlags) String() string {
	return strings.Join(*e, ",")
}

func (e *excludeFlags) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// readExcludes loads one pattern per line, blank lines and lines
// starting with '#' are skipped.
func readExcludes(pathname string) ([]string, error) {
	fp, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	patterns := make([]string, 0)
	scanner := bufio.NewScanner(fp)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

func main() {
	os.Exit(entryPoint())
}

func entryPoint() int {
	var opt_configfile string
	var opt_cpuCount int
	var opt_concurrency int
	var opt_cacheDir string
	var opt_noCache bool
	var opt_fingerprint string
	var opt_extension string
	var opt_tileSize int
	var opt_trace string
	var opt_info bool
	var opt_quiet bool
	var opt_profiling bool
	var opt_exclude excludeFlags
	var opt_excludes string

	flag.StringVar(&opt_configfile, "config", "", "configuration file")
	flag.IntVar(&opt_cpuCount, "cpu", 0, "limit the number of usable cores")
	flag.IntVar(&opt_concurrency, "concurrency", 0, "maximum number of parallel tasks")
	flag.StringVar(&opt_cacheDir, "cache-dir", "", "location cache directory")
	flag.BoolVar(&opt_noCache, "no-cache", false, "disable the location cache")
	flag.StringVar(&opt_fingerprint, "fingerprint", "", "chunk fingerprint algorithm")
	flag.StringVar(&opt_extension, "chunk-extension", "", "chunk file extension")
	flag.IntVar(&opt_tileSize, "tile-size", 0, "tile size used when a stitched grid has no tile")
	flag.StringVar(&opt_trace, "trace", "", "display trace logs, comma-separated subsystems or all")
	flag.BoolVar(&opt_info, "info", false, "display informational messages")
	flag.BoolVar(&opt_quiet, "quiet", false, "no output except warnings and errors")
	flag.BoolVar(&opt_profiling, "profile", false, "display profiling information at exit")
	flag.Var(&opt_exclude, "exclude", "glob of chunk paths to skip in every snapshot, may be repeated")
	flag.StringVar(&opt_excludes, "excludes", "", "file containing a list of exclusions")
	flag.Parse()

	if opt_configfile == "" {
		path, err := config.DefaultPath()
		if err != nil {
			log.Fatalf("%s: could not locate configuration: %s", flag.CommandLine.Name(), err)
		}
		opt_configfile = path
	}
	cfg := config.NewConfigAPI(opt_configfile)
	global, err := cfg.Global()
	if err != nil {
		log.Fatalf("%s: %s", flag.CommandLine.Name(), err)
	}

	// command line flags win over the configuration file
	fromConfig := func(key string, value *string) {
		if *value == "" {
			*value = global[key]
		}
	}
	fromConfigInt := func(key string, value *int) {
		if *value != 0 || global[key] == "" {
			return
		}
		n, err := strconv.Atoi(global[key])
		if err != nil || n <= 0 {
			log.Fatalf("%s: %s: invalid %s: %s", flag.CommandLine.Name(), cfg.Path(), key, global[key])
		}
		*value = n
	}
	fromConfig("cache-dir", &opt_cacheDir)
	fromConfig("fingerprint", &opt_fingerprint)
	fromConfig("chunk-extension", &opt_extension)
	fromConfig("trace", &opt_trace)
	fromConfig("excludes", &opt_excludes)
	fromConfigInt("concurrency", &opt_concurrency)
	fromConfigInt("tile-size", &opt_tileSize)

	if opt_cpuCount < 0 || opt_cpuCount > runtime.NumCPU() {
		log.Fatalf("%s: can't use more cores than available: %d", flag.CommandLine.Name(), runtime.NumCPU())
	}
	if opt_cpuCount == 0 {
		opt_cpuCount = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(opt_cpuCount)

	if opt_fingerprint != "" && hashing.GetHasher(opt_fingerprint) == nil {
		log.Fatalf("%s: unsupported fingerprint algorithm: %s (one of %s)", flag.CommandLine.Name(), opt_fingerprint, strings.Join(hashing.Algorithms(), ", "))
	}

	patterns := []string(opt_exclude)
	if opt_excludes != "" {
		fromFile, err := readExcludes(opt_excludes)
		if err != nil {
			log.Fatalf("%s: %s", flag.CommandLine.Name(), err)
		}
		patterns = append(patterns, fromFile...)
	}
	excludes, err := importer.CompileExcludes(patterns)
	if err != nil {
		log.Fatalf("%s: %s", flag.CommandLine.Name(), err)
	}

	if opt_cacheDir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			opt_noCache = true
		} else {
			opt_cacheDir = filepath.Join(userCacheDir, "tilediff")
		}
	}

	var stdout io.Writer = os.Stdout
	if opt_quiet {
		stdout = io.Discard
	}

	ctx := context.NewContext()
	defer ctx.Close()

	ctx.Logger = logging.NewLogger(stdout, os.Stderr)
	if opt_info {
		ctx.Logger.EnableInfo()
	}
	if opt_trace != "" {
		ctx.Logger.EnableTrace(opt_trace)
	}
	if opt_profiling {
		ctx.Logger.EnableProfiling()
	}

	ctx.SetCommandLine(strings.Join(os.Args, " "))
	ctx.SetNumCPU(opt_cpuCount)
	if opt_concurrency == 0 {
		opt_concurrency = ctx.GetNumCPU()*8 + 1
	}
	ctx.SetMaxConcurrency(opt_concurrency)
	ctx.SetCacheDir(opt_cacheDir)
	ctx.SetDisableCache(opt_noCache)
	if opt_fingerprint != "" {
		ctx.SetFingerprint(opt_fingerprint)
	}
	if opt_extension != "" {
		ctx.SetChunkExtension(opt_extension)
	}
	if opt_tileSize != 0 {
		ctx.SetTileSize(opt_tileSize)
	}
	ctx.SetExcludes(excludes)

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "%s: a subcommand must be provided\n", filepath.Base(flag.CommandLine.Name()))
		fmt.Fprintf(os.Stderr, "available subcommands:\n")
		for _, command := range subcommands.List() {
			fmt.Fprintf(os.Stderr, "  %s\n", command)
		}
		return 1
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	ctx.Logger.Trace("main", "%s: %d exclusions, concurrency %d", ctx.GetCommandLine(), len(excludes), ctx.GetMaxConcurrency())
	status, err := subcommands.Execute(ctx, cfg, command, args)
	if err != nil {
		ctx.Logger.Error("%s", err)
	}

	if ctx.Logger.ProfilingEnabled() {
		profiler.Display(ctx.Logger)
	}
	return status
}
