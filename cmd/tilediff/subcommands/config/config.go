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

package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/PlakarLabs/tilediff/cmd/tilediff/subcommands"
	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
)

func init() {
	subcommands.Register("config", cmd_config)
}

func cmd_config(ctx *context.Context, api *config.ConfigAPI, args []string) int {
	flags := flag.NewFlagSet("config", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s global [KEY [VALUE]]\n", flags.Name())
		fmt.Fprintf(flags.Output(), "       %s chain NAME KEY [VALUE]\n", flags.Name())
	}
	flags.Parse(args)

	if flags.NArg() == 0 {
		flags.Usage()
		return 1
	}

	subcommand, parameters := flags.Arg(0), flags.Args()[1:]
	switch subcommand {
	case "global":
		switch len(parameters) {
		case 0:
			if err := api.ListGlobalParameters(os.Stdout); err != nil {
				ctx.Logger.Error("%s", err)
				return 1
			}
		case 1:
			value, err := api.GetGlobalParameter(parameters[0])
			if err != nil {
				ctx.Logger.Error("%s", err)
				return 1
			}
			fmt.Println(parameters[0], "=", value)
		case 2:
			if err := api.SetGlobalParameter(parameters[0], parameters[1]); err != nil {
				ctx.Logger.Error("%s", err)
				return 1
			}
		default:
			flags.Usage()
			return 1
		}
		return 0

	case "chain":
		switch len(parameters) {
		case 2:
			value, err := api.GetChainParameter(parameters[0], parameters[1])
			if err != nil {
				ctx.Logger.Error("%s", err)
				return 1
			}
			fmt.Println(parameters[1], "=", value)
		case 3:
			if err := api.SetChainParameter(parameters[0], parameters[1], parameters[2]); err != nil {
				ctx.Logger.Error("%s", err)
				return 1
			}
		default:
			flags.Usage()
			return 1
		}
		return 0
	}

	flags.Usage()
	return 1
}
