package main

import "jewelry-rates/internal/cli"

func main() {
	cli.Execute()
}
