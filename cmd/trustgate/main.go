// Command trustgate runs the trust-enforcing MCP reverse proxy.
package main

import "github.com/trustgate/trustgate/cmd/trustgate/cmd"

func main() {
	cmd.Execute()
}
