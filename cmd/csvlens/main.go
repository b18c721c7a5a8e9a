// Command csvlens is an interactive terminal pager for CSV and TSV
// files, akin to less but aware of delimited columns: filter, sort,
// search, freeze columns, and copy cells to the clipboard without
// loading the whole file into memory.
package main

import (
	"crypto/sha1"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/csvquery/csvlens/internal/coordinator"
	"github.com/csvquery/csvlens/internal/index"
	"github.com/csvquery/csvlens/internal/model"
	"github.com/csvquery/csvlens/internal/source"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("csvlens", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	delimiter := fs.String("d", "auto", "field delimiter character, or \"auto\" to sniff from the first line")
	fs.StringVar(delimiter, "delimiter", "auto", "alias of -d")
	tabSeparated := fs.Bool("t", false, "use tab as the delimiter")
	fs.BoolVar(tabSeparated, "tab-separated", false, "alias of -t")
	ignoreCase := fs.Bool("i", false, "case-insensitive filter/find by default")
	fs.BoolVar(ignoreCase, "ignore-case", false, "alias of -i")
	noHeaders := fs.Bool("no-headers", false, "treat the first row as data, not a header")
	columns := fs.String("columns", "", "regex selecting visible columns by header name")
	filterRegex := fs.String("filter", "", "regex applied as the initial row filter")
	findRegex := fs.String("find", "", "regex applied as the initial search")
	echoColumn := fs.String("echo-column", "", "on cell-select exit, print this column's value instead")
	prompt := fs.String("prompt", "", "status line prefix")
	colorColumns := fs.Bool("color-columns", false, "alternate column background colors")
	colorful := fs.Bool("colorful", false, "alias of --color-columns")
	wrap := fs.String("wrap", "off", "wrap mode for overlong cells: chars|words|off")
	autoReload := fs.Bool("auto-reload", false, "watch the input file and reload on changes")
	noStreamingStdin := fs.Bool("no-streaming-stdin", false, "read all of stdin before starting, instead of incrementally")
	clipboardLimit := fs.Int("clipboard-limit", 10000, "maximum rows copied by a column-copy operation")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	sep, err := resolveSeparator(*delimiter, *tabSeparated, fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, (&model.UsageError{Msg: err.Error()}).Error())
		return 2
	}

	wrapMode, err := resolveWrap(*wrap)
	if err != nil {
		fmt.Fprintln(os.Stderr, (&model.UsageError{Msg: err.Error()}).Error())
		return 2
	}

	src, err := openSource(fs.Args(), *autoReload, *noStreamingStdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	opts := coordinator.Options{
		Separator:      sep,
		Headers:        !*noHeaders,
		ColumnsRegex:   *columns,
		FilterRegex:    *filterRegex,
		FindRegex:      *findRegex,
		IgnoreCase:     *ignoreCase,
		EchoColumnName: *echoColumn,
		Prompt:         *prompt,
		ColorColumns:   *colorColumns || *colorful,
		Wrap:           wrapMode,
		ClipboardLimit: *clipboardLimit,
	}

	// A plain file (not auto-reloading, not a stdin spill) can reuse a
	// prior launch's index: fingerprint the file and look for a
	// checkpoint keyed by that fingerprint before indexing from
	// scratch.
	if len(fs.Args()) > 0 && !*autoReload {
		if fp, ferr := index.ComputeFingerprint(fs.Args()[0]); ferr == nil {
			opts.CheckpointPath = checkpointPath(fs.Args()[0], fp)
			opts.Fingerprint = fp
		}
	}

	if err := coordinator.Run(opts, src); err != nil {
		fmt.Fprintln(os.Stderr, (&model.TerminalError{Err: err}).Error())
		return 1
	}
	return 0
}

func resolveSeparator(delim string, tab bool, positional []string) (rune, error) {
	if tab {
		return '\t', nil
	}
	if delim == "" || delim == "auto" {
		return sniffSeparator(positional)
	}
	r := []rune(delim)
	if len(r) != 1 {
		return 0, fmt.Errorf("--delimiter must be a single character, got %q", delim)
	}
	return r[0], nil
}

// sniffSeparator peeks at the first line of a named input file to
// guess comma vs. semicolon vs. tab vs. pipe, defaulting to comma when the
// source is stdin or sniffing is inconclusive.
func sniffSeparator(positional []string) (rune, error) {
	if len(positional) == 0 {
		return ',', nil
	}
	f, err := os.Open(positional[0])
	if err != nil {
		return ',', nil
	}
	defer f.Close()
	buf := make([]byte, 4096)
	n, _ := f.Read(buf)
	line := buf[:n]
	counts := map[rune]int{',': 0, '\t': 0, ';': 0, '|': 0}
	for _, b := range line {
		if b == '\n' {
			break
		}
		if _, ok := counts[rune(b)]; ok {
			counts[rune(b)]++
		}
	}
	best := ','
	bestN := -1
	for r, n := range counts {
		if n > bestN {
			best, bestN = r, n
		}
	}
	if bestN <= 0 {
		return ',', nil
	}
	return best, nil
}

func resolveWrap(s string) (model.WrapMode, error) {
	switch s {
	case "", "off":
		return model.WrapOff, nil
	case "chars":
		return model.WrapChars, nil
	case "words":
		return model.WrapWords, nil
	default:
		return model.WrapOff, fmt.Errorf("--wrap must be chars, words, or off, got %q", s)
	}
}

func openSource(positional []string, autoReload, noStream bool) (source.Adapter, error) {
	if len(positional) > 0 {
		path := positional[0]
		if autoReload {
			a, err := source.WatchFile(path)
			if err != nil {
				return nil, &model.SourceError{Path: path, Err: err}
			}
			return a, nil
		}
		a, err := source.OpenFile(path)
		if err != nil {
			return nil, &model.SourceError{Path: path, Err: err}
		}
		return a, nil
	}

	stat, _ := os.Stdin.Stat()
	if stat != nil && (stat.Mode()&os.ModeCharDevice) != 0 {
		return nil, &model.UsageError{Msg: "no file given and stdin is a terminal"}
	}
	s, err := source.NewStreamedStdin(os.Stdin, noStream)
	if err != nil {
		return nil, &model.SourceError{Path: "<stdin>", Err: err}
	}
	if noStream {
		// Incremental reads disabled: block until the whole input has
		// spilled, so indexing starts against a finalized source.
		s.Wait()
		if serr := s.Err(); serr != nil {
			s.Close()
			return nil, &model.SourceError{Path: "<stdin>", Err: serr}
		}
	}
	return s, nil
}

// checkpointPath derives a stable cache file name for path from its
// fingerprint hash, so different files (and different versions of the
// same path) never collide on one checkpoint.
func checkpointPath(path string, fp index.Fingerprint) string {
	h := sha1.Sum([]byte(path + "|" + fp.Hash))
	return filepath.Join(os.TempDir(), "csvlens-idx-"+hex.EncodeToString(h[:])+".cidx")
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: csvlens [flags] [filename]")
	fs.PrintDefaults()
}
