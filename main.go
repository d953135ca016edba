package main

import "kvconsole/cmd"

func main() {
	cmd.Execute()
}
