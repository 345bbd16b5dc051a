package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to stderr, ensuring no API keys are leaked.
func outputError(w io.Writer, err error) {
	msg := scrubSensitiveData(err.Error())
	if isTTY() {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render(iconError), msg)
	} else {
		fmt.Fprintf(w, "Error: %s\n", msg)
	}
}

// scrubSensitiveData redacts the resolved API key from error messages.
// The library never includes it, but wrapped transport errors might.
func scrubSensitiveData(msg string) string {
	if key := apiKeyInUse(); key != "" && strings.Contains(msg, key) {
		msg = strings.ReplaceAll(msg, key, "[REDACTED]")
	}
	return msg
}
