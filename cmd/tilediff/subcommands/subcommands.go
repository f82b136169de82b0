package subcommands

import (
	"fmt"
	"log"
	"sort"

	"github.com/PlakarLabs/tilediff/config"
	"github.com/PlakarLabs/tilediff/context"
)

type Command func(*context.Context, *config.ConfigAPI, []string) int

var subcommands map[string]Command = make(map[string]Command)

func Register(command string, fn Command) {
	if _, exists := subcommands[command]; exists {
		log.Fatalf("command '%s' registered twice", command)
	}
	subcommands[command] = fn
}

func Execute(ctx *context.Context, cfg *config.ConfigAPI, command string, args []string) (int, error) {
	fn, exists := subcommands[command]
	if !exists {
		return 1, fmt.Errorf("unknown command: %s", command)
	}
	return fn(ctx, cfg, args), nil
}

func List() []string {
	var list []string
	for command := range subcommands {
		list = append(list, command)
	}
	sort.Strings(list)
	return list
}
