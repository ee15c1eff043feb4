package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

// Message is a platform-neutral view of an incoming chat message.
//
// For Telegram document messages the command text comes from the caption;
// Document carries the attachment metadata so handlers can fetch the file
// contents through the adapter.
type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool

	Document *Document
}

// Document describes a file attached to a message.
type Document struct {
	FileID   string
	FileName string
	MIME     string
	Size     int64
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// ReplyTo makes the outgoing message a reply to an existing message
	// in the target chat (0 = no reply).
	ReplyTo int
}

type Notification struct {
	Channel  string // "telegram" now
	Priority int    // 0 low.. 10 high
	Target   ChatTarget
	Text     string
	Options  *SendOptions
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
}

// FileFetcher is an optional interface for adapters that can download
// message attachments (Telegram: getFile).
type FileFetcher interface {
	FetchDocument(ctx context.Context, fileID string) ([]byte, error)
}
