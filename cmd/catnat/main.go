package main

import "github.com/Paul-Berdier/123PandaRoux/internal/commander"

func main() {
	commander.Execute()
}
