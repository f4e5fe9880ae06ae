package main

import "github.com/mwhittaker87/clearcrawl/cmd"

func main() {
	cmd.Execute()
}
