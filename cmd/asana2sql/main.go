// Command asana2sql mirrors an Asana project into a SQLite table.
package main

import "github.com/mesh-intelligence/asana2sql/internal/cli"

func main() {
	cli.Execute()
}
