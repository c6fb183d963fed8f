package main

import "github.com/coldtruck/coldtruck-backend/cmd"

func main() {
	cmd.Execute()
}
