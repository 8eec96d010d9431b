package terminal

import "context"

// EventLog is the terminal's persistence seam. The sqlite events repo
// implements it; when the database cannot be opened the loop degrades
// to NopEvents and keeps running.
type EventLog interface {
	Append(ctx context.Context, session, kind, content string) error
	Recent(ctx context.Context, term string, limit int) ([]string, error)
	Commands(ctx context.Context, session string, limit int) ([]string, error)
}

type nopEvents struct{}

func (nopEvents) Append(ctx context.Context, session, kind, content string) error {
	return nil
}

func (nopEvents) Recent(ctx context.Context, term string, limit int) ([]string, error) {
	return nil, nil
}

func (nopEvents) Commands(ctx context.Context, session string, limit int) ([]string, error) {
	return nil, nil
}

func NopEvents() EventLog {
	return nopEvents{}
}
