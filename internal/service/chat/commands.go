package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCommand = errors.New("unknown command")

// CommandResult 一行 REPL 输入的执行结果
type CommandResult struct {
	Output string `json:"output"`
	Quit   bool   `json:"quit,omitempty"`
}

const helpText = `Commands:
  /model <name>  switch model
  /models        list models
  /usage         token usage of this session
  /history       show this session's messages
  /clear         forget this session's messages
  /quit          leave`

// Execute 处理一行 REPL 输入：斜杠命令操作会话，其他文本作为消息发送。
// 错误都可恢复，调用方提示后继续读下一行。
func (c *Conversation) Execute(ctx context.Context, key, line string) (CommandResult, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return CommandResult{}, nil
	}
	if !strings.HasPrefix(line, "/") {
		reply, err := c.Send(ctx, key, line)
		if err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Output: reply.Content}, nil
	}

	fields := strings.Fields(line)
	switch cmd := strings.ToLower(fields[0]); cmd {
	case "/quit", "/exit":
		return CommandResult{Output: "Goodbye!", Quit: true}, nil

	case "/help":
		return CommandResult{Output: helpText}, nil

	case "/clear":
		if err := c.store.Clear(ctx, key); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Output: "Session cleared."}, nil

	case "/model":
		if len(fields) < 2 {
			return CommandResult{Output: "Current model: " + c.ModelFor(key)}, nil
		}
		spec, err := c.SetModel(ctx, key, fields[1])
		if err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Output: fmt.Sprintf("Switched to %s (%s)", spec.Key, spec.DisplayName)}, nil

	case "/models":
		return CommandResult{Output: c.describeModels(key)}, nil

	case "/usage":
		return CommandResult{Output: formatUsage(c.usage.Summary(key))}, nil

	case "/history":
		return c.describeHistory(ctx, key)

	default:
		return CommandResult{}, fmt.Errorf("%w: %s (try /help)", ErrUnknownCommand, cmd)
	}
}

func (c *Conversation) describeModels(key string) string {
	current := c.ModelFor(key)
	var b strings.Builder
	b.WriteString("Available models:")
	for _, spec := range c.clients.Registry().Specs() {
		marker := " "
		if spec.Key == current {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n %s %-10s %s [%s]", marker, spec.Key, spec.DisplayName, spec.Provider)
	}
	return b.String()
}

func (c *Conversation) describeHistory(ctx context.Context, key string) (CommandResult, error) {
	records, err := c.store.Export(ctx, key)
	if err != nil {
		return CommandResult{}, err
	}
	if len(records) == 0 {
		return CommandResult{Output: "No messages yet."}, nil
	}
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, fmt.Sprintf("%s: %s", rec.Role, rec.Content))
	}
	return CommandResult{Output: strings.Join(lines, "\n")}, nil
}

func formatUsage(s UsageSummary) string {
	if s.Calls == 0 {
		return "No usage recorded yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Calls: %d | input: %d | output: %d | total: %d tokens | ~$%.4f",
		s.Calls, s.Total.InputTokens, s.Total.OutputTokens, s.Total.TotalTokens, s.Cost)
	for _, m := range s.ByModel {
		fmt.Fprintf(&b, "\n  %-10s %d calls, %d tokens, ~$%.4f", m.Model, m.Calls, m.Usage.TotalTokens, m.Cost)
	}
	return b.String()
}
