package main

import "github.com/andresmejia3/tactset/cmd"

func main() {
	cmd.Execute()
}
