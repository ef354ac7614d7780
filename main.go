package main

import "github.com/Quote-Bot/QuoteBot/cmd"

func main() {
	cmd.Execute()
}
