package main

import "github.com/opsdesk/relay/internal/cli"

func main() {
	cli.Execute()
}
