// The main package for the antipirataria executable.
package main

import "github.com/CarlaKobielski/projeto-antipirataria/cmd"

func main() {
	cmd.Execute()
}
