// Command nanolog-decode renders a compressed log file back into text.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/nanolog/nanolog/decoder"
	"github.com/nanolog/nanolog/registry"
)

var (
	output  = flag.String("o", "", "output path (default stdout)")
	ordered = flag.Bool("ordered", false, "render records in chronological order instead of arrival order")
	id      = flag.Int("id", -1, "only render records from this message id (default: all)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <log-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "nanolog-decode: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create %s: %w", *output, err)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	reg := registry.New()
	records, err := decoder.Decode(data, reg, *ordered)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	for _, r := range records {
		if r.NewExecution {
			if _, err := fmt.Fprintln(w, r.Text); err != nil {
				return err
			}
			continue
		}
		if *id >= 0 && r.MessageID != uint32(*id) {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s:%d %s\n", r.File, r.Line, r.Text); err != nil {
			return err
		}
	}
	return nil
}
