package main

import "picturereader/cmd"

func main() {
	cmd.Execute()
}
