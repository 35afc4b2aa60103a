package pipeline

// User-facing replies produced by the pipeline. Internal error text never
// reaches the user except through the tool and validation formats below,
// which carry provider and validator messages verbatim.
const (
	RateLimitMessage = "Slow down there, friend! You've hit the rate limit. Try again in a bit. 🐢"

	// InvalidArgsFormat takes the tool name and the validator error.
	InvalidArgsFormat = "I tried to use the `%s` tool, but something went wrong with the parameters: %s\n\nCould you rephrase your request?"

	// ToolFailureFormat takes the provider error.
	ToolFailureFormat = "I tried to help, but ran into an issue: %s\n\nThe prophecy remains unclear... 🔮"

	noResult = "No result"

	embeddedPlaceholder = "[EMBEDDED]"
)
