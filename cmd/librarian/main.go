package main

import "libraryhub/cmd/librarian/command"

func main() {
	command.Execute()
}
