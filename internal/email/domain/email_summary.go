package domain

import "time"

// Values stored in place of a message whose metadata could not be fetched.
const (
	PlaceholderSender  = "Error loading sender"
	PlaceholderSubject = "Error loading subject"
	PlaceholderSnippet = "Error loading preview"
)

// Values used when a fetched message lacks the corresponding header.
const (
	DefaultSender  = "Unknown Sender"
	DefaultSubject = "No Subject"
	DefaultSnippet = "No preview available"
)

// EmailSummary is the display form of a single inbox message
type EmailSummary struct {
	ID       string  `json:"id" firestore:"id"`
	Sender   string  `json:"sender" firestore:"sender"`
	Subject  string  `json:"subject" firestore:"subject"`
	Date     string  `json:"date" firestore:"date"`
	Snippet  string  `json:"snippet" firestore:"snippet"`
	ThreadID *string `json:"threadId" firestore:"threadId"`
}

// Snapshot is the most recent inbox fetch for a user. It is replaced as a whole on every login.
type Snapshot struct {
	Emails    []EmailSummary `json:"emails" firestore:"emails"`
	FetchedAt time.Time      `json:"fetched_at" firestore:"fetched_at"`
	Count     int            `json:"count" firestore:"count"`
}

// FormatDate renders t the way fallback dates are stored.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// PlaceholderSummary returns the entry stored for a message whose metadata fetch failed.
func PlaceholderSummary(id string, fetchedAt time.Time) EmailSummary {
	return EmailSummary{
		ID:      id,
		Sender:  PlaceholderSender,
		Subject: PlaceholderSubject,
		Date:    FormatDate(fetchedAt),
		Snippet: PlaceholderSnippet,
	}
}

// SummaryFromMetadata converts fetched metadata, filling defaults for missing headers.
func SummaryFromMetadata(m *MessageMetadata, fetchedAt time.Time) EmailSummary {
	summary := EmailSummary{
		ID:      m.ID,
		Sender:  m.From,
		Subject: m.Subject,
		Date:    m.Date,
		Snippet: m.Snippet,
	}
	if summary.Sender == "" {
		summary.Sender = DefaultSender
	}
	if summary.Subject == "" {
		summary.Subject = DefaultSubject
	}
	if summary.Date == "" {
		summary.Date = FormatDate(fetchedAt)
	}
	if summary.Snippet == "" {
		summary.Snippet = DefaultSnippet
	}
	if m.ThreadID != "" {
		threadID := m.ThreadID
		summary.ThreadID = &threadID
	}
	return summary
}
