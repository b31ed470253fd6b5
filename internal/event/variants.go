package event

import "time"

// Kind identifiers for the built-in event variants.
const (
	KindMessage         = "message"
	KindEditedMessage   = "edited_message"
	KindReaction        = "reaction"
	KindFile            = "file"
	KindImage           = "image"
	KindJoinRoom        = "join_room"
	KindLeaveRoom       = "leave_room"
	KindJoinGroup       = "join_group"
	KindNewRoom         = "new_room"
	KindRoomName        = "room_name"
	KindRoomDescription = "room_description"
	KindPinMessage      = "pin_message"
	KindUnpinMessage    = "unpin_message"
	KindTyping          = "typing"
)

// FieldProvider is optionally implemented by variants whose payload fields
// can be matched by value in event-type matchers.
type FieldProvider interface {
	Field(name string) (string, bool)
}

var (
	_ Event = (*Message)(nil)
	_ Event = (*EditedMessage)(nil)
	_ Event = (*Reaction)(nil)
	_ Event = (*File)(nil)
	_ Event = (*Image)(nil)
	_ Event = (*JoinRoom)(nil)
	_ Event = (*LeaveRoom)(nil)
	_ Event = (*JoinGroup)(nil)
	_ Event = (*NewRoom)(nil)
	_ Event = (*RoomName)(nil)
	_ Event = (*RoomDescription)(nil)
	_ Event = (*PinMessage)(nil)
	_ Event = (*UnpinMessage)(nil)
	_ Event = (*Typing)(nil)
)

// Message is a plain text message.
type Message struct {
	Metadata
	Text string
}

// NewMessage constructs a Message with a fresh Metadata.
func NewMessage(text string) *Message {
	return &Message{Metadata: NewMeta(), Text: text}
}

func (m *Message) Kind() string { return KindMessage }

func (m *Message) Field(name string) (string, bool) {
	if name == "text" {
		return m.Text, true
	}
	return "", false
}

// EditedMessage is an edit of a previously sent message. Linked refers to
// the original.
type EditedMessage struct {
	Message
}

// NewEditedMessage constructs an EditedMessage linked to the original event.
func NewEditedMessage(text string, original Event) *EditedMessage {
	ev := &EditedMessage{Message: Message{Metadata: NewMeta(), Text: text}}
	ev.Linked = original
	return ev
}

func (m *EditedMessage) Kind() string { return KindEditedMessage }

// Reaction is an emoji reaction to a linked event.
type Reaction struct {
	Metadata
	Emoji string
}

// NewReaction constructs a Reaction linked to the event it reacts to.
func NewReaction(emoji string, to Event) *Reaction {
	ev := &Reaction{Metadata: NewMeta(), Emoji: emoji}
	ev.Linked = to
	return ev
}

func (r *Reaction) Kind() string { return KindReaction }

func (r *Reaction) Field(name string) (string, bool) {
	if name == "emoji" {
		return r.Emoji, true
	}
	return "", false
}

// File carries a file by URL or raw bytes.
type File struct {
	Metadata
	URL      string
	Bytes    []byte
	Name     string
	MimeType string
}

// NewFile constructs a File event.
func NewFile(name, mimeType string) *File {
	return &File{Metadata: NewMeta(), Name: name, MimeType: mimeType}
}

func (f *File) Kind() string { return KindFile }

func (f *File) Field(name string) (string, bool) {
	switch name {
	case "name":
		return f.Name, true
	case "mimetype":
		return f.MimeType, true
	}
	return "", false
}

// Image is a File with known dimensions.
type Image struct {
	File
	Width  int
	Height int
}

// NewImage constructs an Image event.
func NewImage(name, mimeType string) *Image {
	return &Image{File: File{Metadata: NewMeta(), Name: name, MimeType: mimeType}}
}

func (i *Image) Kind() string { return KindImage }

// JoinRoom signals a user joining the event's target room.
type JoinRoom struct{ Metadata }

func NewJoinRoom() *JoinRoom { return &JoinRoom{Metadata: NewMeta()} }

func (j *JoinRoom) Kind() string { return KindJoinRoom }

// LeaveRoom signals a user leaving the event's target room.
type LeaveRoom struct{ Metadata }

func NewLeaveRoom() *LeaveRoom { return &LeaveRoom{Metadata: NewMeta()} }

func (l *LeaveRoom) Kind() string { return KindLeaveRoom }

// JoinGroup signals the bot being added to a group.
type JoinGroup struct{ Metadata }

func NewJoinGroup() *JoinGroup { return &JoinGroup{Metadata: NewMeta()} }

func (j *JoinGroup) Kind() string { return KindJoinGroup }

// NewRoom signals creation of a room.
type NewRoom struct {
	Metadata
	Name string
}

func NewNewRoom(name string) *NewRoom { return &NewRoom{Metadata: NewMeta(), Name: name} }

func (n *NewRoom) Kind() string { return KindNewRoom }

func (n *NewRoom) Field(name string) (string, bool) {
	if name == "name" {
		return n.Name, true
	}
	return "", false
}

// RoomName signals a room rename.
type RoomName struct {
	Metadata
	Name string
}

func NewRoomNameChange(name string) *RoomName { return &RoomName{Metadata: NewMeta(), Name: name} }

func (r *RoomName) Kind() string { return KindRoomName }

func (r *RoomName) Field(name string) (string, bool) {
	if name == "name" {
		return r.Name, true
	}
	return "", false
}

// RoomDescription signals a change of room topic or description.
type RoomDescription struct {
	Metadata
	Text string
}

func NewRoomDescription(text string) *RoomDescription {
	return &RoomDescription{Metadata: NewMeta(), Text: text}
}

func (r *RoomDescription) Kind() string { return KindRoomDescription }

// PinMessage pins the linked event.
type PinMessage struct{ Metadata }

func NewPinMessage(of Event) *PinMessage {
	ev := &PinMessage{Metadata: NewMeta()}
	ev.Linked = of
	return ev
}

func (p *PinMessage) Kind() string { return KindPinMessage }

// UnpinMessage unpins the linked event.
type UnpinMessage struct{ Metadata }

func NewUnpinMessage(of Event) *UnpinMessage {
	ev := &UnpinMessage{Metadata: NewMeta()}
	ev.Linked = of
	return ev
}

func (u *UnpinMessage) Kind() string { return KindUnpinMessage }

// Typing is a typing indicator. Trigger starts the indicator, and Timeout
// is how long the service should keep it visible.
type Typing struct {
	Metadata
	Trigger bool
	Timeout time.Duration
}

func NewTyping(trigger bool, timeout time.Duration) *Typing {
	return &Typing{Metadata: NewMeta(), Trigger: trigger, Timeout: timeout}
}

func (t *Typing) Kind() string { return KindTyping }

func (t *Typing) Field(name string) (string, bool) {
	if name == "trigger" {
		if t.Trigger {
			return "true", true
		}
		return "false", true
	}
	return "", false
}
