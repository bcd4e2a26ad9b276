package main

import "github.com/ridoystarlord/mongoprov/cmd"

func main() {
	cmd.Execute()
}
