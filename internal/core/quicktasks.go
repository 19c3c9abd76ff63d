package core

// QuickTask is a canned task that can be injected into the task input.
type QuickTask struct {
	ID    string `json:"id" toml:"id"`
	Label string `json:"label" toml:"label"`
	Text  string `json:"text" toml:"text"`
}

// DefaultQuickTasks returns the built-in canned tasks.
func DefaultQuickTasks() []QuickTask {
	return []QuickTask{
		{ID: "recipe", Label: "🍰 Find Recipe", Text: "Find a great recipe for Banoffee Pie, then summarize it in markdown to banoffee.md"},
		{ID: "ai-news", Label: "📰 AI News Summary", Text: "Research the latest news about AI developments and create a summary report"},
		{ID: "python-frameworks", Label: "🐍 Python Frameworks", Text: "Find information about Python web frameworks and compare them in a markdown file"},
		{ID: "mcp-practices", Label: "🔧 MCP Best Practices", Text: "Search for the best practices for MCP servers and document them"},
	}
}
