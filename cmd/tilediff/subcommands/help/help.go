/*
 * Copyright (c) 2021 Gilles Chehade <gilles@poolp.org>
 *
 * Permission to use, copy, modify, and distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package help

import (
	"bufio"
	"bytes"
	"embed"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

//go:embed docs/*
var docs embed.FS

func init() {
	subcommands.Register("help", cmd_help)
}

// summary extracts the one-line description of the NAME section, written
// as "**tilediff command** - description".
func summary(content []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "**tilediff ") {
			continue
		}
		if _, description, found := strings.Cut(line, "** - "); found {
			return description
		}
	}
	return ""
}

func listCommands() {
	w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "available commands:\n")
	for _, command := range subcommands.List() {
		content, err := docs.ReadFile(fmt.Sprintf("docs/%s.md", command))
		if err != nil {
			fmt.Fprintf(w, "  %s\t\n", command)
			continue
		}
		fmt.Fprintf(w, "  %s\t%s\n", command, summary(content))
	}
	w.Flush()
}

func cmd_help(ctx *context.Context, _ *config.ConfigAPI, args []string) int {
	var opt_style string
	var opt_raw bool
	flags := flag.NewFlagSet("help", flag.ExitOnError)
	flags.StringVar(&opt_style, "style", "dracula", "style to use")
	flags.BoolVar(&opt_raw, "raw", false, "print the markdown source without rendering it")
	flags.Parse(args)

	if flags.NArg() == 0 {
		listCommands()
		return 0
	}

	content, err := docs.ReadFile(fmt.Sprintf("docs/%s.md", flags.Arg(0)))
	if err != nil {
		ctx.Logger.Error("unknown command: %s", flags.Arg(0))
		listCommands()
		return 1
	}
	if opt_raw {
		os.Stdout.Write(content)
		return 0
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(opt_style),
		glamour.WithColorProfile(termenv.TrueColor),
	)
	if err != nil {
		ctx.Logger.Error("failed to create renderer: %s", err)
		return 1
	}

	out, err := r.RenderBytes(content)
	if err != nil {
		ctx.Logger.Error("failed to render: %s", err)
		return 1
	}
	fmt.Print(string(out))

	return 0
}
