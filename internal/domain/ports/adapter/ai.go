package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Task names the fixed instruction template a completion was rendered from.
type Task string

const (
	TaskSyllabusParse        Task = "syllabus_parse"
	TaskWorkloadAnalysis     Task = "workload_analysis"
	TaskScheduleOptimize     Task = "schedule_optimize"
	TaskNotificationGenerate Task = "notification_generate"
	TaskAssistantAction      Task = "assistant_action"
)

// CompletionRequest is one system+user prompt pair sent to the LLM.
type CompletionRequest struct {
	Task              Task
	SystemInstruction string
	UserContent       string
	Temperature       float64
	MaxOutputTokens   int
}

// Messages returns the two-message conversation for the request.
func (r CompletionRequest) Messages() []Message {
	return []Message{
		{Role: "system", Content: r.SystemInstruction},
		{Role: "user", Content: r.UserContent},
	}
}

// Completer is the port for text completion.
// Implementations must be safe for concurrent use.
type Completer interface {
	// Complete returns the assistant text of the first choice.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Scraper fetches a web page and returns its content as markdown.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}
