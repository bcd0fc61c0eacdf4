// Conduit sends completion requests to OpenAI, Anthropic and self-hosted
// OpenAI-compatible servers through one provider abstraction.
//
// Usage:
//
//	# One completion, routed by model name
//	conduit complete --model gpt-4o "Summarize RFC 9110 in one sentence"
//
//	# Stream tokens as they arrive
//	echo "Write a haiku about Go" | conduit stream --provider local
//
//	# Show the model catalog
//	conduit models
//
//	# Check configuration and credentials
//	conduit validate --config conduit.yaml
//
//	# Serve metrics and health endpoints with scheduled credential probes
//	conduit monitor
package main

func main() {
	Execute()
}
