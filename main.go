package main

import "github.com/alapierre/go-eims-client/cmd"

func main() {
	cmd.Execute()
}
