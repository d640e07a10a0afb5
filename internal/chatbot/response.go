package chatbot

import (
	"fmt"
	"slices"

	"github.com/elliotchance/pie/v2"
)

// Kind tells the caller what to do with a Response after showing its text.
type Kind int

const (
	// Plain is a terminal message without choices.
	Plain Kind = iota
	// Options carries a non-empty, ordered menu.
	Options
	// Action asks the caller to perform a side effect, usually navigation via RouteFor.
	Action
)

var kindNames = map[Kind]string{
	Plain:   "plain",
	Options: "options",
	Action:  "action",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("chatbot: invalid kind %d", int(k))
	}
	return []byte(name), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("chatbot: unknown kind %q", string(b))
}

// Option is one entry of a menu. Action is exchanged as its topic key.
type Option struct {
	Label  string `json:"label"`
	Action Topic  `json:"actionKey"`
}

// Response is a canned reply. Values handed out by the catalog own their
// Options slice, so callers may keep or modify them freely.
type Response struct {
	Text    string   `json:"text"`
	Kind    Kind     `json:"kind"`
	Options []Option `json:"options,omitempty"`
}

// Labels returns the option labels in display order.
func (r Response) Labels() []string {
	return pie.Map(r.Options, func(o Option) string { return o.Label })
}

// ActionKeys returns the option action keys in display order.
func (r Response) ActionKeys() []string {
	return pie.Map(r.Options, func(o Option) string { return o.Action.String() })
}

// Equal reports whether two responses have the same text, kind and options.
func (r Response) Equal(other Response) bool {
	return r.Text == other.Text && r.Kind == other.Kind && slices.Equal(r.Options, other.Options)
}

func (r Response) clone() Response {
	r.Options = slices.Clone(r.Options)
	return r
}

func menu(text string, opts ...Option) Response {
	return Response{Text: text, Kind: Options, Options: opts}
}

func action(text string) Response {
	return Response{Text: text, Kind: Action}
}

func opt(label string, t Topic) Option {
	return Option{Label: label, Action: t}
}
