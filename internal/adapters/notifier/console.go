package notifier

import (
	"context"
	"fmt"
	"io"
	"os"

	"multiTraderBot/internal/domain"
)

// ConsoleSink prints notifications to a writer, stdout by default.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a console sink. A nil writer means os.Stdout.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Send(ctx context.Context, n domain.Notification) error {
	_, err := fmt.Fprintf(s.out, "[%s] [%s] %s: %s\n",
		n.Timestamp.Format("2006-01-02 15:04:05"), n.Type, n.Symbol, n.Message)
	return err
}
