package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionKind classifies an audit record.
type ActionKind string

const (
	ActionCreated      ActionKind = "CREATED"
	ActionUpdate       ActionKind = "UPDATE"
	ActionStatusChange ActionKind = "STATUS_CHANGE"
	ActionAssigned     ActionKind = "ASSIGNED"
	ActionComment      ActionKind = "COMMENT"
)

// Field names a task attribute that may appear in a field change.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldPriority    Field = "priority"
	FieldStatus      Field = "status"
	FieldDeadline    Field = "deadline"
	FieldAssignees   Field = "assignees"
)

// FieldOrder is the canonical order in which changed fields are listed.
var FieldOrder = []Field{
	FieldTitle, FieldDescription, FieldPriority, FieldStatus, FieldDeadline, FieldAssignees,
}

// AuditRecord is an immutable history entry for one accepted task mutation.
type AuditRecord struct {
	ID        string
	TaskID    string
	Action    ActionKind
	Change    Change
	ActorID   string
	CreatedAt time.Time
}

// Change is the typed payload of an audit record.
// Implementations: FieldChange, AssignmentChange, CommentChange.
type Change interface {
	isChange()
}

// FieldChange holds old and new values for every field that differed.
// Values are typed: string (title, description), TaskPriority, TaskStatus,
// *time.Time (deadline) and []string (assignees).
type FieldChange struct {
	Old map[Field]any
	New map[Field]any
}

// AssignmentChange holds assignee-set snapshots around an assignment.
type AssignmentChange struct {
	Old []string
	New []string
}

// CommentChange carries the comment attached by a COMMENT record.
type CommentChange struct {
	CommentID string
	Content   string
}

func (FieldChange) isChange()      {}
func (AssignmentChange) isChange() {}
func (CommentChange) isChange()    {}

// NewFieldChange returns an empty FieldChange ready to be filled.
func NewFieldChange() FieldChange {
	return FieldChange{Old: map[Field]any{}, New: map[Field]any{}}
}

// Set records a field transition.
func (c FieldChange) Set(f Field, oldValue, newValue any) {
	c.Old[f] = oldValue
	c.New[f] = newValue
}

// Empty reports whether no field differed.
func (c FieldChange) Empty() bool {
	return len(c.New) == 0
}

// Fields returns the changed fields in canonical order.
func (c FieldChange) Fields() []Field {
	fields := make([]Field, 0, len(c.New))
	for _, f := range FieldOrder {
		if _, ok := c.New[f]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// OnlyStatus reports whether status is the single changed field.
func (c FieldChange) OnlyStatus() bool {
	_, ok := c.New[FieldStatus]
	return ok && len(c.New) == 1
}

// changeDocument is the stored {old, new} shape of every change.
type changeDocument struct {
	Old map[string]json.RawMessage `json:"old"`
	New map[string]json.RawMessage `json:"new"`
}

const (
	docKeyCommentID = "commentId"
	docKeyContent   = "content"
)

// EncodeChange serializes a change into its {old, new} document.
func EncodeChange(c Change) ([]byte, error) {
	oldDoc := map[string]any{}
	newDoc := map[string]any{}

	switch ch := c.(type) {
	case FieldChange:
		for f, v := range ch.Old {
			oldDoc[string(f)] = v
		}
		for f, v := range ch.New {
			newDoc[string(f)] = v
		}
	case AssignmentChange:
		oldDoc[string(FieldAssignees)] = nonNil(ch.Old)
		newDoc[string(FieldAssignees)] = nonNil(ch.New)
	case CommentChange:
		newDoc[docKeyCommentID] = ch.CommentID
		newDoc[docKeyContent] = ch.Content
	default:
		return nil, fmt.Errorf("encode change: unsupported type %T", c)
	}

	return json.Marshal(map[string]any{"old": oldDoc, "new": newDoc})
}

// DecodeChange parses a stored document back into the variant for action.
func DecodeChange(action ActionKind, data []byte) (Change, error) {
	var doc changeDocument
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode change document: %w", err)
		}
	}

	switch action {
	case ActionAssigned:
		var ch AssignmentChange
		if err := unmarshalIfPresent(doc.Old[string(FieldAssignees)], &ch.Old); err != nil {
			return nil, err
		}
		if err := unmarshalIfPresent(doc.New[string(FieldAssignees)], &ch.New); err != nil {
			return nil, err
		}
		return ch, nil
	case ActionComment:
		var ch CommentChange
		if err := unmarshalIfPresent(doc.New[docKeyCommentID], &ch.CommentID); err != nil {
			return nil, err
		}
		if err := unmarshalIfPresent(doc.New[docKeyContent], &ch.Content); err != nil {
			return nil, err
		}
		return ch, nil
	default:
		ch := NewFieldChange()
		for key, raw := range doc.Old {
			v, err := decodeFieldValue(Field(key), raw)
			if err != nil {
				return nil, err
			}
			ch.Old[Field(key)] = v
		}
		for key, raw := range doc.New {
			v, err := decodeFieldValue(Field(key), raw)
			if err != nil {
				return nil, err
			}
			ch.New[Field(key)] = v
		}
		return ch, nil
	}
}

// decodeFieldValue restores the Go type a field value had before encoding.
// Unknown fields are kept as generic JSON values.
func decodeFieldValue(f Field, raw json.RawMessage) (any, error) {
	var err error
	switch f {
	case FieldTitle, FieldDescription:
		var s string
		err = unmarshalIfPresent(raw, &s)
		return s, wrapFieldErr(f, err)
	case FieldPriority:
		var p TaskPriority
		err = unmarshalIfPresent(raw, &p)
		return p, wrapFieldErr(f, err)
	case FieldStatus:
		var s TaskStatus
		err = unmarshalIfPresent(raw, &s)
		return s, wrapFieldErr(f, err)
	case FieldDeadline:
		var t *time.Time
		err = unmarshalIfPresent(raw, &t)
		return t, wrapFieldErr(f, err)
	case FieldAssignees:
		var ids []string
		err = unmarshalIfPresent(raw, &ids)
		return ids, wrapFieldErr(f, err)
	default:
		var v any
		err = unmarshalIfPresent(raw, &v)
		return v, wrapFieldErr(f, err)
	}
}

func unmarshalIfPresent(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func wrapFieldErr(f Field, err error) error {
	if err != nil {
		return fmt.Errorf("decode field %s: %w", f, err)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
