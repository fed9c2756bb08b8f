package main

import "github.com/ValentinKolb/redisimp/cmd"

func main() {
	cmd.Execute()
}
