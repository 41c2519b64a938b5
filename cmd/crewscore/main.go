package main

import "github.com/xplor/crewscore/internal/cli"

func main() {
	cli.Execute()
}
