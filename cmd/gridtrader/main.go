package main

import "github.com/rustyeddy/gridtrader/internal/cli"

func main() {
	cli.Execute()
}
